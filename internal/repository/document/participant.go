package document

import (
	"context"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/store"
)

// Participants is the participant repository.
type Participants struct {
	base
}

// NewParticipants constructs a participant repository.
func NewParticipants(st store.Store) *Participants {
	return &Participants{base{store: st}}
}

// Create inserts a participant existence record. Returns (nil, nil) when the
// supplied identity is already taken.
func (r *Participants) Create(ctx context.Context, fields repository.Fields) (*domain.Participant, error) {
	doc, err := r.create(ctx, store.Participants, fields, nil)
	if err != nil || doc == nil {
		return nil, err
	}
	return &domain.Participant{ID: docString(doc, "participant_uuid")}, nil
}

// Get fetches a participant by identity.
func (r *Participants) Get(ctx context.Context, id string) (*domain.Participant, error) {
	doc, err := r.get(ctx, store.Participants, id)
	if err != nil {
		return nil, err
	}
	return &domain.Participant{ID: docString(doc, "participant_uuid")}, nil
}

// Delete removes a participant record.
func (r *Participants) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, store.Participants, id)
}

// ParticipantLinks is the participant-to-user mapping repository. Links are
// keyed by participant identity, which is what makes the mapping 1:1.
type ParticipantLinks struct {
	base
}

// NewParticipantLinks constructs a participant link repository.
func NewParticipantLinks(st store.Store) *ParticipantLinks {
	return &ParticipantLinks{base{store: st}}
}

// Create inserts a link. Returns (nil, nil) when the participant is already
// linked; callers treat that as the domain violation it is.
func (r *ParticipantLinks) Create(ctx context.Context, fields repository.Fields) (*domain.ParticipantLink, error) {
	doc, err := r.create(ctx, store.ParticipantLinks, fields, nil)
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeLink(doc), nil
}

// Get fetches the link for a participant.
func (r *ParticipantLinks) Get(ctx context.Context, participantID string) (*domain.ParticipantLink, error) {
	doc, err := r.get(ctx, store.ParticipantLinks, participantID)
	if err != nil {
		return nil, err
	}
	return decodeLink(doc), nil
}

// Delete removes a link.
func (r *ParticipantLinks) Delete(ctx context.Context, participantID string) (bool, error) {
	return r.store.Delete(ctx, store.ParticipantLinks, participantID)
}

func decodeLink(doc store.Document) *domain.ParticipantLink {
	return &domain.ParticipantLink{
		ParticipantID: docString(doc, "participant_uuid"),
		UserID:        docString(doc, "user_uuid"),
	}
}
