package document

import (
	"context"
	"fmt"
	"time"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/store"
)

// FunnelEvents is the funnel event repository.
type FunnelEvents struct {
	base
}

// NewFunnelEvents constructs a funnel event repository.
func NewFunnelEvents(st store.Store) *FunnelEvents {
	return &FunnelEvents{base{store: st}}
}

// Create inserts a funnel event. Returns (nil, nil) when the supplied
// identity is already taken.
func (r *FunnelEvents) Create(ctx context.Context, fields repository.Fields) (*domain.FunnelEvent, error) {
	defaults := store.Document{"event_step": domain.StepLanded.String()}
	doc, err := r.create(ctx, store.FunnelEvents, fields, defaults)
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeFunnelEvent(doc)
}

// Get fetches a funnel event by identity.
func (r *FunnelEvents) Get(ctx context.Context, id string) (*domain.FunnelEvent, error) {
	doc, err := r.get(ctx, store.FunnelEvents, id)
	if err != nil {
		return nil, err
	}
	return decodeFunnelEvent(doc)
}

// Delete removes a funnel event.
func (r *FunnelEvents) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, store.FunnelEvents, id)
}

func decodeFunnelEvent(doc store.Document) (*domain.FunnelEvent, error) {
	step, err := domain.ParseFunnelStep(docString(doc, "event_step"))
	if err != nil {
		return nil, fmt.Errorf("funnel event %s: %w", docString(doc, "event_uuid"), err)
	}
	at, err := docTime(doc, "event_time")
	if err != nil {
		return nil, err
	}
	var occurred time.Time
	if at != nil {
		occurred = *at
	}
	return &domain.FunnelEvent{
		ID:         docString(doc, "event_uuid"),
		SessionID:  docString(doc, "session_uuid"),
		Step:       step,
		OccurredAt: occurred,
	}, nil
}
