package repository

import (
	"context"

	"github.com/elijificent/experimentation/internal/domain"
)

// Fields is a partial create/update payload keyed by stored field name.
// Unknown names are rejected with ErrInvalidField; the identity field may be
// supplied on create but never on update.
type Fields map[string]any

// ExperimentRepository persists experiments.
//
// Create returns (nil, nil) when the supplied identity already exists;
// callers must nil-check rather than expect an error. Update patches the
// named fields, writes the merged entity back, and returns the re-read
// entity so enum-typed fields come back properly typed; it returns
// (nil, nil) when the store reports nothing was modified.
type ExperimentRepository interface {
	Create(ctx context.Context, fields Fields) (*domain.Experiment, error)
	Get(ctx context.Context, id string) (*domain.Experiment, error)
	Update(ctx context.Context, id string, fields Fields) (*domain.Experiment, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]domain.Experiment, error)
	// PushVariant adds a variant to the experiment's variant list as a
	// single atomic add-if-absent operation. Returns whether the list
	// actually changed.
	PushVariant(ctx context.Context, experimentID, variantID string) (bool, error)
}

// VariantRepository persists experiment variants.
type VariantRepository interface {
	Create(ctx context.Context, fields Fields) (*domain.Variant, error)
	Get(ctx context.Context, id string) (*domain.Variant, error)
	Update(ctx context.Context, id string, fields Fields) (*domain.Variant, error)
	Delete(ctx context.Context, id string) (bool, error)
	// PushParticipant adds a participant to the variant's membership set as
	// a single atomic add-if-absent operation. Returns whether the set
	// actually changed.
	PushParticipant(ctx context.Context, variantID, participantID string) (bool, error)
}

// ParticipantRepository persists participant existence records.
type ParticipantRepository interface {
	Create(ctx context.Context, fields Fields) (*domain.Participant, error)
	Get(ctx context.Context, id string) (*domain.Participant, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, fields Fields) (*domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, id string, fields Fields) (*domain.User, error)
	Delete(ctx context.Context, id string) (bool, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// ParticipantLinkRepository persists the immutable participant-to-user
// mapping, keyed by participant identity.
type ParticipantLinkRepository interface {
	Create(ctx context.Context, fields Fields) (*domain.ParticipantLink, error)
	Get(ctx context.Context, participantID string) (*domain.ParticipantLink, error)
	Delete(ctx context.Context, participantID string) (bool, error)
}

// FunnelEventRepository persists funnel events.
type FunnelEventRepository interface {
	Create(ctx context.Context, fields Fields) (*domain.FunnelEvent, error)
	Get(ctx context.Context, id string) (*domain.FunnelEvent, error)
	Delete(ctx context.Context, id string) (bool, error)
}
