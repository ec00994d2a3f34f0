package funnel

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/service/participant"
)

// Service records signup-funnel progress and ties anonymous sessions to
// accounts once they convert.
type Service struct {
	events       repository.FunnelEventRepository
	users        repository.UserRepository
	participants participant.Service
	logger       *slog.Logger
}

// New returns a funnel service.
func New(events repository.FunnelEventRepository, users repository.UserRepository, participants participant.Service, logger *slog.Logger) Service {
	return Service{events: events, users: users, participants: participants, logger: logger}
}

// Record stores a funnel event for the session. A zero occurred-at is
// stamped with the current time.
func (s Service) Record(ctx context.Context, sessionID string, step domain.FunnelStep, at time.Time) (*domain.FunnelEvent, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	event, err := s.events.Create(ctx, repository.Fields{
		"session_uuid": sessionID,
		"event_step":   step,
		"event_time":   at,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("funnel event recorded", "session_id", sessionID, "step", step.String())
	return event, nil
}

// AttemptLinkParticipant links the session's participant record to the user,
// best effort. Blank ids, a missing user, or an existing link all report
// false without an error so signup flows never fail on tracking.
func (s Service) AttemptLinkParticipant(ctx context.Context, sessionID, userID string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	userID = strings.TrimSpace(userID)
	if sessionID == "" || userID == "" {
		return false, nil
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.participants.LinkToUser(ctx, sessionID, userID); err != nil {
		if errors.Is(err, participant.ErrAlreadyLinked) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
