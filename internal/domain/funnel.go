package domain

import (
	"fmt"
	"strings"
	"time"
)

// FunnelStep marks how far along the signup funnel a session has progressed.
type FunnelStep string

const (
	StepLanded    FunnelStep = "landed"
	StepSigningUp FunnelStep = "signing_up"
	StepSignedUp  FunnelStep = "signed_up"
)

// ParseFunnelStep maps a stored tag to a FunnelStep, case-insensitively.
// Unrecognized tags are rejected.
func ParseFunnelStep(tag string) (FunnelStep, error) {
	switch FunnelStep(strings.ToLower(strings.TrimSpace(tag))) {
	case StepLanded:
		return StepLanded, nil
	case StepSigningUp:
		return StepSigningUp, nil
	case StepSignedUp:
		return StepSignedUp, nil
	}
	return "", fmt.Errorf("unknown funnel step %q", tag)
}

// String returns the canonical lowercase tag persisted to the store.
func (s FunnelStep) String() string {
	return string(s)
}

// FunnelEvent records a session reaching a funnel step.
type FunnelEvent struct {
	ID         string
	SessionID  string
	Step       FunnelStep
	OccurredAt time.Time
}
