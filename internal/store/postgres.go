package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a single jsonb-backed documents table.
type Postgres struct {
	pool   *pgxpool.Pool
	stage  string
	logger *slog.Logger
}

// NewPostgres constructs a Postgres store scoped to a deployment stage.
func NewPostgres(pool *pgxpool.Pool, stage string, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, stage: stage, logger: logger}
}

var _ Store = (*Postgres)(nil)

// Create inserts the document if its identity is unused.
func (p *Postgres) Create(ctx context.Context, col Collection, doc Document) (string, error) {
	id := identity(col, doc)
	if id == "" {
		return "", ErrMissingIdentity
	}
	if _, found, err := p.Get(ctx, col, id); err != nil {
		return "", err
	} else if found {
		return "", nil
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	const query = `INSERT INTO documents (stage, collection, doc_id, doc)
		VALUES ($1, $2, $3, $4)`
	tag, err := p.pool.Exec(ctx, query, p.stage, col.Name, id, payload)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() != 1 {
		return "", ErrAckFailure
	}
	return id, nil
}

// Get fetches a document by identity.
func (p *Postgres) Get(ctx context.Context, col Collection, id string) (Document, bool, error) {
	const query = `SELECT doc FROM documents WHERE stage = $1 AND collection = $2 AND doc_id = $3`
	row := p.pool.QueryRow(ctx, query, p.stage, col.Name, id)
	return scanDocument(col, row)
}

// Update merges doc over the stored document. The identity field never
// changes, so it is stripped from the payload before writing.
func (p *Postgres) Update(ctx context.Context, col Collection, id string, doc Document) (bool, error) {
	patch := make(Document, len(doc))
	for field, value := range doc {
		if field == col.IDField {
			continue
		}
		patch[field] = value
	}
	if _, found, err := p.Get(ctx, col, id); err != nil {
		return false, err
	} else if !found {
		return false, ErrNotFound
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return false, fmt.Errorf("encode document: %w", err)
	}
	const query = `UPDATE documents SET doc = doc || $4
		WHERE stage = $1 AND collection = $2 AND doc_id = $3`
	tag, err := p.pool.Exec(ctx, query, p.stage, col.Name, id, payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes all documents matching id. The table's primary key should
// make more than one match impossible; if it still happens the identity
// invariant is broken, so it is logged for observability rather than raised.
func (p *Postgres) Delete(ctx context.Context, col Collection, id string) (bool, error) {
	const query = `DELETE FROM documents WHERE stage = $1 AND collection = $2 AND doc_id = $3`
	tag, err := p.pool.Exec(ctx, query, p.stage, col.Name, id)
	if err != nil {
		return false, err
	}
	switch deleted := tag.RowsAffected(); {
	case deleted == 0:
		return false, nil
	case deleted > 1:
		p.logger.Warn("deleted more than one document for a single identity",
			"collection", col.Name, "doc_id", id, "deleted", deleted)
		return true, nil
	default:
		return true, nil
	}
}

// AddToSet appends value to an array field only if it is not already a
// member. One statement, so concurrent admissions cannot lose updates or
// duplicate a membership.
func (p *Postgres) AddToSet(ctx context.Context, col Collection, id, field, value string) (bool, error) {
	const query = `UPDATE documents
		SET doc = jsonb_set(doc, ARRAY[$4], COALESCE(doc->$4, '[]'::jsonb) || to_jsonb($5::text))
		WHERE stage = $1 AND collection = $2 AND doc_id = $3
			AND NOT COALESCE(doc->$4, '[]'::jsonb) @> to_jsonb($5::text)`
	tag, err := p.pool.Exec(ctx, query, p.stage, col.Name, id, field, value)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Find returns the first document whose field equals value.
func (p *Postgres) Find(ctx context.Context, col Collection, field, value string) (Document, bool, error) {
	const query = `SELECT doc FROM documents
		WHERE stage = $1 AND collection = $2 AND doc->>$3 = $4
		LIMIT 1`
	row := p.pool.QueryRow(ctx, query, p.stage, col.Name, field, value)
	return scanDocument(col, row)
}

// List returns every document in the collection.
func (p *Postgres) List(ctx context.Context, col Collection) ([]Document, error) {
	const query = `SELECT doc FROM documents
		WHERE stage = $1 AND collection = $2
		ORDER BY inserted_at, doc_id`
	rows, err := p.pool.Query(ctx, query, p.stage, col.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(col, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(col Collection, row pgx.Row) (Document, bool, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	doc, err := decodeDocument(col, raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func decodeDocument(col Collection, raw []byte) (Document, error) {
	var full Document
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return hydrate(col, full), nil
}
