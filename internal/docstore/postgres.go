package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps all documents in a single table keyed by path, with
// the JSON data in a jsonb column. Filtering and ordering run in applyQuery
// so query semantics stay identical to the other backends.
type PostgresStore struct {
	pool  *pgxpool.Pool
	clock serverClock
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			path       TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("creating documents table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, path string) (Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM documents WHERE path = $1`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("postgres get %s: %w", path, err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Document{}, fmt.Errorf("postgres get %s: %w", path, err)
	}
	return Document{Path: path, Data: data}, nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", path, err)
	}
	_, err = s.pool.Exec(ctx, setQuery(merge), path, raw)
	if err != nil {
		return fmt.Errorf("postgres set %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, path string, partial map[string]any) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("postgres update %s: %w", path, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET data = data || $2, updated_at = now() WHERE path = $1`,
		path, raw)
	if err != nil {
		return fmt.Errorf("postgres update %s: %w", path, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		return fmt.Errorf("postgres delete %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT path, data FROM documents
		WHERE path LIKE $1 || '/%' AND path NOT LIKE $1 || '/%/%'`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("postgres query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("postgres query %s: %w", collection, err)
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("postgres query %s: %w", path, err)
		}
		docs = append(docs, Document{Path: path, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres query %s: %w", collection, err)
	}
	return applyQuery(docs, q), nil
}

func (s *PostgresStore) BatchWrite(ctx context.Context, writes []Write) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, w := range writes {
		raw, err := json.Marshal(w.Data)
		if err != nil {
			return fmt.Errorf("postgres batch %s: %w", w.Path, err)
		}
		if _, err := tx.Exec(ctx, setQuery(w.Merge), w.Path, raw); err != nil {
			return fmt.Errorf("postgres batch %s: %w", w.Path, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres batch commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Now() time.Time { return s.clock.Now() }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func setQuery(merge bool) string {
	if merge {
		return `
			INSERT INTO documents (path, data) VALUES ($1, $2)
			ON CONFLICT (path) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`
	}
	return `
		INSERT INTO documents (path, data) VALUES ($1, $2)
		ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
}
