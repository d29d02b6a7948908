package requestlog

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Datastore keeps entries in the request_logs table.
type Datastore struct {
	db DBTX
}

// NewDatastore creates a Postgres-backed store.
func NewDatastore(db DBTX) *Datastore {
	return &Datastore{db: db}
}

// Record inserts an entry.
func (ds *Datastore) Record(ctx context.Context, e *Entry) error {
	prepare(e)

	query := `
		INSERT INTO request_logs (
			id, model, provider, status, error, duration_ms,
			prompt_tokens, completion_tokens, total_tokens, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := ds.db.ExecContext(ctx, query,
		e.ID, e.Model, e.Provider, e.Status, e.Error, e.DurationMS,
		e.PromptTokens, e.CompletionTokens, e.TotalTokens, e.CreatedAt,
	)
	return err
}

// Recent returns up to limit entries, newest first.
func (ds *Datastore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, model, provider, status, error, duration_ms,
		       prompt_tokens, completion_tokens, total_tokens, created_at
		FROM request_logs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := ds.db.QueryContext(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.ID, &e.Model, &e.Provider, &e.Status, &e.Error, &e.DurationMS,
			&e.PromptTokens, &e.CompletionTokens, &e.TotalTokens, &e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
