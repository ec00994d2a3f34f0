// Package store provides an entity-agnostic document gateway. Each entity
// type declares a Collection descriptor (collection name, identity field and
// the ordered set of persisted fields) and every operation works on plain
// documents; business rules live above, in the repository and services.
package store

import (
	"context"
	"errors"
)

// Document is the raw persisted shape of an entity.
type Document map[string]any

// Collection describes where and how one entity type is persisted.
type Collection struct {
	// Name is the logical collection name. Implementations namespace it by
	// deployment stage so dev/test/prod data never mix.
	Name string
	// IDField is the name of the identity field inside the document.
	IDField string
	// Fields is the declared persisted schema, identity included. Reads
	// hydrate only these fields; anything else in the stored document is
	// ignored for forward compatibility.
	Fields []string
}

// HasField reports whether name is part of the declared schema.
func (c Collection) HasField(name string) bool {
	for _, field := range c.Fields {
		if field == name {
			return true
		}
	}
	return false
}

// Collection descriptors for every persisted entity type.
var (
	Experiments = Collection{
		Name:    "experiments",
		IDField: "experiment_uuid",
		Fields:  []string{"experiment_uuid", "name", "description", "start_date", "end_date", "experiment_status", "experiment_variants"},
	}
	Variants = Collection{
		Name:    "experiment_variants",
		IDField: "variant_uuid",
		Fields:  []string{"variant_uuid", "name", "description", "allocation", "participants"},
	}
	Participants = Collection{
		Name:    "experiment_participants",
		IDField: "participant_uuid",
		Fields:  []string{"participant_uuid"},
	}
	Users = Collection{
		Name:    "users",
		IDField: "user_uuid",
		Fields:  []string{"user_uuid", "username", "hashed_password", "random_salt"},
	}
	ParticipantLinks = Collection{
		Name:    "participants_to_users",
		IDField: "participant_uuid",
		Fields:  []string{"participant_uuid", "user_uuid"},
	}
	FunnelEvents = Collection{
		Name:    "funnel_events",
		IDField: "event_uuid",
		Fields:  []string{"event_uuid", "session_uuid", "event_step", "event_time"},
	}
)

var (
	// ErrNotFound indicates the update target does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrMissingIdentity indicates a create without an identity value.
	ErrMissingIdentity = errors.New("store: document identity required")
	// ErrAckFailure indicates the store acknowledged a write but reported no
	// effect. Fatal; callers must not retry.
	ErrAckFailure = errors.New("store: write acknowledged without effect")
)

// Store is the persistence gateway contract shared by the Postgres and
// in-memory implementations.
type Store interface {
	// Create inserts the document if no document with the same identity
	// exists. An identity collision returns ("", nil), not an error.
	Create(ctx context.Context, col Collection, doc Document) (string, error)
	// Get returns the document hydrated to its declared fields, or
	// found=false when absent.
	Get(ctx context.Context, col Collection, id string) (Document, bool, error)
	// Update merges doc over the stored document. The identity field is
	// stripped from the payload. Missing target -> ErrNotFound. modified is
	// true only when exactly one document changed.
	Update(ctx context.Context, col Collection, id string, doc Document) (bool, error)
	// Delete removes all documents matching id. Zero matches -> (false, nil).
	Delete(ctx context.Context, col Collection, id string) (bool, error)
	// AddToSet appends value to the named array field only if absent, as a
	// single atomic operation. Returns whether the set changed.
	AddToSet(ctx context.Context, col Collection, id, field, value string) (bool, error)
	// Find returns the first document whose field equals value.
	Find(ctx context.Context, col Collection, field, value string) (Document, bool, error)
	// List returns every document in the collection.
	List(ctx context.Context, col Collection) ([]Document, error)
}

// hydrate copies only the declared fields out of a raw document.
func hydrate(col Collection, raw Document) Document {
	doc := make(Document, len(col.Fields))
	for _, field := range col.Fields {
		if value, ok := raw[field]; ok {
			doc[field] = value
		}
	}
	return doc
}

// identity extracts the identity value from a document.
func identity(col Collection, doc Document) string {
	value, _ := doc[col.IDField].(string)
	return value
}
