package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory implements Store in process memory. It mirrors the Postgres
// semantics exactly, including JSON value normalization, so repository and
// service code behaves the same against either backend. Used for tests and
// local runs without a database.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]Document
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]Document)}
}

var _ Store = (*Memory)(nil)

// Create inserts the document if its identity is unused.
func (m *Memory) Create(ctx context.Context, col Collection, doc Document) (string, error) {
	id := identity(col, doc)
	if id == "" {
		return "", ErrMissingIdentity
	}
	normalized, err := normalize(doc)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.collections[col.Name]
	if docs == nil {
		docs = make(map[string]Document)
		m.collections[col.Name] = docs
	}
	if _, exists := docs[id]; exists {
		return "", nil
	}
	docs[id] = normalized
	return id, nil
}

// Get fetches a document by identity.
func (m *Memory) Get(ctx context.Context, col Collection, id string) (Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.collections[col.Name][id]
	if !ok {
		return nil, false, nil
	}
	copied, err := normalize(raw)
	if err != nil {
		return nil, false, err
	}
	return hydrate(col, copied), true, nil
}

// Update merges doc over the stored document, identity stripped.
func (m *Memory) Update(ctx context.Context, col Collection, id string, doc Document) (bool, error) {
	normalized, err := normalize(doc)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.collections[col.Name][id]
	if !ok {
		return false, ErrNotFound
	}
	for field, value := range normalized {
		if field == col.IDField {
			continue
		}
		current[field] = value
	}
	return true, nil
}

// Delete removes the document matching id.
func (m *Memory) Delete(ctx context.Context, col Collection, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.collections[col.Name]
	if _, ok := docs[id]; !ok {
		return false, nil
	}
	delete(docs, id)
	return true, nil
}

// AddToSet appends value to an array field only if it is not already a
// member. Atomic under the store mutex.
func (m *Memory) AddToSet(ctx context.Context, col Collection, id, field, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[col.Name][id]
	if !ok {
		return false, nil
	}
	members, _ := doc[field].([]any)
	for _, member := range members {
		if member == value {
			return false, nil
		}
	}
	doc[field] = append(members, value)
	return true, nil
}

// Find returns the first document whose field equals value.
func (m *Memory) Find(ctx context.Context, col Collection, field, value string) (Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.collections[col.Name] {
		if doc[field] == value {
			copied, err := normalize(doc)
			if err != nil {
				return nil, false, err
			}
			return hydrate(col, copied), true, nil
		}
	}
	return nil, false, nil
}

// List returns every document in the collection.
func (m *Memory) List(ctx context.Context, col Collection) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]Document, 0, len(m.collections[col.Name]))
	for _, doc := range m.collections[col.Name] {
		copied, err := normalize(doc)
		if err != nil {
			return nil, err
		}
		docs = append(docs, hydrate(col, copied))
	}
	return docs, nil
}

// normalize round-trips a document through JSON so stored values carry the
// same types (float64, []any, string) the Postgres backend produces, and so
// callers never share slices or maps with the store.
func normalize(doc Document) (Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var copied Document
	if err := json.Unmarshal(raw, &copied); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return copied, nil
}
