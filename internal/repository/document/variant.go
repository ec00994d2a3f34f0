package document

import (
	"context"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/store"
)

// Variants is the experiment variant repository.
type Variants struct {
	base
}

// NewVariants constructs a variant repository.
func NewVariants(st store.Store) *Variants {
	return &Variants{base{store: st}}
}

func variantDefaults() store.Document {
	return store.Document{
		"name":         "",
		"description":  "",
		"allocation":   1.0,
		"participants": []string{},
	}
}

// Create inserts a new variant. Returns (nil, nil) when the supplied
// identity is already taken.
func (r *Variants) Create(ctx context.Context, fields repository.Fields) (*domain.Variant, error) {
	doc, err := r.create(ctx, store.Variants, fields, variantDefaults())
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeVariant(doc), nil
}

// Get fetches a variant by identity.
func (r *Variants) Get(ctx context.Context, id string) (*domain.Variant, error) {
	doc, err := r.get(ctx, store.Variants, id)
	if err != nil {
		return nil, err
	}
	return decodeVariant(doc), nil
}

// Update patches the named variant fields and returns the re-read entity.
func (r *Variants) Update(ctx context.Context, id string, fields repository.Fields) (*domain.Variant, error) {
	doc, err := r.update(ctx, store.Variants, id, fields)
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeVariant(doc), nil
}

// Delete removes a variant.
func (r *Variants) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, store.Variants, id)
}

// PushParticipant adds a participant identity to the variant's membership
// set if absent, in one atomic store operation.
func (r *Variants) PushParticipant(ctx context.Context, variantID, participantID string) (bool, error) {
	return r.store.AddToSet(ctx, store.Variants, variantID, "participants", participantID)
}

func decodeVariant(doc store.Document) *domain.Variant {
	return &domain.Variant{
		ID:           docString(doc, "variant_uuid"),
		Name:         docString(doc, "name"),
		Description:  docString(doc, "description"),
		Allocation:   docFloat(doc, "allocation", 1.0),
		Participants: docStringSlice(doc, "participants"),
	}
}
