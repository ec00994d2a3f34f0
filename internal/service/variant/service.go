package variant

import (
	"context"
	"errors"

	"log/slog"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
)

var (
	// ErrNotFound indicates the variant does not exist.
	ErrNotFound = errors.New("variant not found")
	// ErrNegativeAllocation indicates an allocation weight below zero.
	ErrNegativeAllocation = errors.New("allocation must be a non-negative number")
)

// Service manages experiment variants.
type Service struct {
	variants repository.VariantRepository
	logger   *slog.Logger
}

// New returns a variant service.
func New(variants repository.VariantRepository, logger *slog.Logger) Service {
	return Service{variants: variants, logger: logger}
}

// Get returns a variant by identity.
func (s Service) Get(ctx context.Context, variantID string) (*domain.Variant, error) {
	v, err := s.variants.Get(ctx, variantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// UpdateAllocation sets a variant's allocation weight.
func (s Service) UpdateAllocation(ctx context.Context, variantID string, allocation float64) (*domain.Variant, error) {
	if allocation < 0 {
		return nil, ErrNegativeAllocation
	}
	updated, err := s.variants.Update(ctx, variantID, repository.Fields{"allocation": allocation})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

// UpdateDescription sets a variant's description.
func (s Service) UpdateDescription(ctx context.Context, variantID, description string) (*domain.Variant, error) {
	updated, err := s.variants.Update(ctx, variantID, repository.Fields{"description": description})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

// ParticipantInVariant reports whether the participant is a member of the
// variant. A missing variant is simply "not a member".
func (s Service) ParticipantInVariant(ctx context.Context, variantID, participantID string) (bool, error) {
	v, err := s.variants.Get(ctx, variantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, member := range v.Participants {
		if member == participantID {
			return true, nil
		}
	}
	return false, nil
}

// AddParticipant adds a participant to the variant's membership set. The
// push is atomic; false means the participant was already a member.
func (s Service) AddParticipant(ctx context.Context, variantID, participantID string) (bool, error) {
	if _, err := s.variants.Get(ctx, variantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}
	return s.variants.PushParticipant(ctx, variantID, participantID)
}
