package domain

// Participant is a minimal existence record for an anonymous subject, so
// variants and links may reference it safely.
type Participant struct {
	ID string
}

// ParticipantLink maps a participant to a user account. The mapping is
// created at most once per participant and never mutated.
type ParticipantLink struct {
	ParticipantID string
	UserID        string
}
