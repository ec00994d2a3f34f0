package domain

import (
	"fmt"
	"strings"
)

// Status tracks where an experiment is in its lifecycle. "stopped" is used
// when the experiment is halted for some extraneous reason, where resuming
// would not make sense; "completed" means it ran to a natural finish.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
)

// ParseStatus maps a stored tag to a Status. Matching is case-insensitive
// and unrecognized tags are rejected rather than defaulted.
func ParseStatus(tag string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(tag))) {
	case StatusCreated:
		return StatusCreated, nil
	case StatusRunning:
		return StatusRunning, nil
	case StatusPaused:
		return StatusPaused, nil
	case StatusStopped:
		return StatusStopped, nil
	case StatusCompleted:
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("unknown experiment status %q", tag)
}

// String returns the canonical lowercase tag persisted to the store.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusCompleted
}

// Resolvable reports whether the experiment can currently produce a variant
// for serving. Completed experiments stay resolvable so participants keep
// seeing their assigned variant; this is deliberately a different predicate
// from the admission gate, which refuses new admissions once terminal.
func (s Status) Resolvable() bool {
	return s == StatusRunning || s == StatusPaused || s == StatusCompleted
}
