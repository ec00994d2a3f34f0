package participant

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
)

var (
	// ErrExists indicates the participant identity is already registered.
	ErrExists = errors.New("participant already exists")
	// ErrAlreadyLinked indicates the participant is already mapped to a user.
	ErrAlreadyLinked = errors.New("participant already linked to a user")
	// ErrMissingIDs indicates a link call with a blank participant or user id.
	ErrMissingIDs = errors.New("participant and user ids are required")
)

// Service manages participant existence records and their immutable link to
// user accounts.
type Service struct {
	participants repository.ParticipantRepository
	links        repository.ParticipantLinkRepository
	logger       *slog.Logger
}

// New returns a participant service.
func New(participants repository.ParticipantRepository, links repository.ParticipantLinkRepository, logger *slog.Logger) Service {
	return Service{participants: participants, links: links, logger: logger}
}

// Create registers a participant. Supplying a blank identity generates one;
// registering an existing identity is a domain violation.
func (s Service) Create(ctx context.Context, participantID string) (*domain.Participant, error) {
	fields := repository.Fields{}
	if id := strings.TrimSpace(participantID); id != "" {
		fields["participant_uuid"] = id
	}
	created, err := s.participants.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, ErrExists
	}
	s.logger.Info("participant created", "participant_id", created.ID)
	return created, nil
}

// Get returns a participant by identity.
func (s Service) Get(ctx context.Context, participantID string) (*domain.Participant, error) {
	return s.participants.Get(ctx, participantID)
}

// LinkToUser maps a participant to a user, at most once. A second link for
// an already-linked participant is a domain violation, never an overwrite.
func (s Service) LinkToUser(ctx context.Context, participantID, userID string) (*domain.ParticipantLink, error) {
	participantID = strings.TrimSpace(participantID)
	userID = strings.TrimSpace(userID)
	if participantID == "" || userID == "" {
		return nil, ErrMissingIDs
	}

	if _, err := s.links.Get(ctx, participantID); err == nil {
		return nil, ErrAlreadyLinked
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	link, err := s.links.Create(ctx, repository.Fields{
		"participant_uuid": participantID,
		"user_uuid":        userID,
	})
	if err != nil {
		return nil, err
	}
	if link == nil {
		// Lost a race with a concurrent link for the same participant.
		return nil, ErrAlreadyLinked
	}
	s.logger.Info("participant linked to user", "participant_id", participantID, "user_id", userID)
	return link, nil
}
