// Package postgres provides the PostgreSQL-backed implementation of
// [memory.Store].
//
// The store holds a single [pgxpool.Pool]. The exchanges table is created
// idempotently on startup via [Migrate]; no further schema migrations are in
// scope. Insertion ordering and id monotonicity come from a BIGSERIAL primary
// key, so concurrent writers cannot interleave partial rows or reuse ids.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nferro/voxloom/internal/memory"
)

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)

const ddlExchanges = `
CREATE TABLE IF NOT EXISTS exchanges (
    id           BIGSERIAL    PRIMARY KEY,
    user_input   TEXT         NOT NULL,
    bot_response TEXT         NOT NULL,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_exchanges_created_at
    ON exchanges (created_at);
`

// Store is the PostgreSQL-backed exchange log. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the exchanges table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the exchanges table and its indexes if they do not exist.
// Safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlExchanges); err != nil {
		return fmt.Errorf("exchanges ddl: %w", err)
	}
	return nil
}

// Recall implements memory.Store. The query text is matched with ILIKE
// against stored user_input; LIKE metacharacters in the query are escaped so
// the match is always literal substring containment. The lowest-id match is
// returned, keeping recall deterministic for a fixed store state.
func (s *Store) Recall(ctx context.Context, query string) (string, error) {
	const q = `
		SELECT bot_response
		FROM   exchanges
		WHERE  user_input ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER  BY id
		LIMIT  1`

	var response string
	err := s.pool.QueryRow(ctx, q, escapeLike(query)).Scan(&response)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", memory.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres store: recall: %w", err)
	}
	return response, nil
}

// Append implements memory.Store. The row is committed before returning; a
// successful Append is durable.
func (s *Store) Append(ctx context.Context, userInput, botResponse string) (memory.Record, error) {
	const q = `
		INSERT INTO exchanges (user_input, bot_response)
		VALUES ($1, $2)
		RETURNING id, created_at`

	r := memory.Record{
		UserInput:   userInput,
		BotResponse: botResponse,
	}
	if err := s.pool.QueryRow(ctx, q, userInput, botResponse).Scan(&r.ID, &r.CreatedAt); err != nil {
		return memory.Record{}, fmt.Errorf("postgres store: append: %w", err)
	}
	return r, nil
}

// Recent implements memory.Store.
func (s *Store) Recent(ctx context.Context, limit int) ([]memory.Record, error) {
	const q = `
		SELECT id, user_input, bot_response, created_at
		FROM   exchanges
		ORDER  BY id DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Record, error) {
		var r memory.Record
		err := row.Scan(&r.ID, &r.UserInput, &r.BotResponse, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if records == nil {
		records = []memory.Record{}
	}
	return records, nil
}

// Ping implements memory.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// escapeLike escapes LIKE metacharacters so user text matches literally.
func escapeLike(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(q)
}
