// Package document implements the repository interfaces over the document
// store gateway. It owns field validation, identity immutability and the
// write-back/re-read dance that keeps enum-typed fields properly typed;
// everything below it works on raw documents.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/store"
)

// base carries the gateway handle and the generic create/read/update logic
// shared by every entity repository.
type base struct {
	store store.Store
}

// ensure the typed repositories satisfy their interfaces.
var (
	_ repository.ExperimentRepository      = (*Experiments)(nil)
	_ repository.VariantRepository         = (*Variants)(nil)
	_ repository.ParticipantRepository     = (*Participants)(nil)
	_ repository.UserRepository            = (*Users)(nil)
	_ repository.ParticipantLinkRepository = (*ParticipantLinks)(nil)
	_ repository.FunnelEventRepository     = (*FunnelEvents)(nil)
)

// create validates field names, fills defaults, generates an identity when
// none was supplied and delegates to the gateway. An identity collision
// surfaces as a nil document with no error.
func (b base) create(ctx context.Context, col store.Collection, fields repository.Fields, defaults store.Document) (store.Document, error) {
	doc := make(store.Document, len(col.Fields))
	for field, value := range defaults {
		doc[field] = value
	}
	for field, value := range fields {
		if !col.HasField(field) {
			return nil, fmt.Errorf("%w: %s", repository.ErrInvalidField, field)
		}
		doc[field] = encodeValue(value)
	}
	if id, _ := doc[col.IDField].(string); id == "" {
		doc[col.IDField] = uuid.NewString()
	}

	id, err := b.store.Create(ctx, col, doc)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}

	created, found, err := b.store.Get(ctx, col, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, store.ErrAckFailure
	}
	return created, nil
}

// update validates field names (the identity field is immutable), reads the
// current document, applies the patches in memory with values normalized to
// their stored form, writes the merged document back and re-reads it. The
// re-read is what hands enum-typed fields back as typed values instead of
// the raw primitives the patch stored. A store-level "nothing modified"
// comes back as a nil document with no error.
func (b base) update(ctx context.Context, col store.Collection, id string, fields repository.Fields) (store.Document, error) {
	for field := range fields {
		if !col.HasField(field) || field == col.IDField {
			return nil, fmt.Errorf("%w: %s", repository.ErrInvalidField, field)
		}
	}

	current, found, err := b.store.Get(ctx, col, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, repository.ErrNotFound
	}
	for field, value := range fields {
		current[field] = encodeValue(value)
	}

	modified, err := b.store.Update(ctx, col, id, current)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if !modified {
		return nil, nil
	}

	updated, found, err := b.store.Get(ctx, col, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, repository.ErrNotFound
	}
	return updated, nil
}

// get reads a document or reports repository.ErrNotFound.
func (b base) get(ctx context.Context, col store.Collection, id string) (store.Document, error) {
	doc, found, err := b.store.Get(ctx, col, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, repository.ErrNotFound
	}
	return doc, nil
}
