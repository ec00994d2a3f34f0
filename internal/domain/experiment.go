package domain

import "time"

// Experiment is the root model for A/B testing, an hypothesis to be tested
// across one or more variants. Variants holds variant identities in insertion
// order; the order drives display and index-aligned batch updates, nothing
// statistical.
type Experiment struct {
	ID          string
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      Status
	Variants    []string
}

// Variant is one treatment arm of an experiment. Allocation is an
// unnormalized non-negative weight; Participants is a membership set kept
// duplicate-free by the repository's atomic push.
type Variant struct {
	ID           string
	Name         string
	Description  string
	Allocation   float64
	Participants []string
}

// ParticipantCount returns the observed membership size.
func (v Variant) ParticipantCount() int {
	return len(v.Participants)
}
