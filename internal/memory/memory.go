// Package memory defines the persistent exchange log shared by all resolver
// flows: an append-only sequence of (user input, bot response) rows with
// substring recall.
//
// Rows are immutable once written and ids are strictly increasing in
// insertion order. When several rows match a recall query, the first match in
// insertion order (lowest id) wins — a fixed rule so recall is reproducible
// for a given store state.
//
// Two implementations exist: [MemStore] (in-process, for tests and dev mode)
// and the PostgreSQL store in the postgres subpackage. Both serialize writes
// through a single logical writer so concurrent exchanges can never interleave
// a partial row or break the id sequence.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Recall when no stored row matches the query.
var ErrNotFound = errors.New("memory: no matching record")

// Record is one persisted exchange row.
type Record struct {
	// ID is unique and strictly increasing in insertion order.
	ID int64

	// UserInput is the (lower-cased by the resolver) user text.
	UserInput string

	// BotResponse preserves the original casing of the response.
	BotResponse string

	// CreatedAt is the write time.
	CreatedAt time.Time
}

// Store is the exchange log abstraction.
//
// Implementations must be safe for concurrent use and must commit every
// successful Append durably before returning.
type Store interface {
	// Recall returns the bot response of the first row (in insertion order)
	// whose UserInput contains query as a case-insensitive substring.
	// Returns an error wrapping [ErrNotFound] when nothing matches.
	Recall(ctx context.Context, query string) (string, error)

	// Append inserts a new immutable row with a fresh id and the current
	// timestamp, and returns it.
	Append(ctx context.Context, userInput, botResponse string) (Record, error)

	// Recent returns up to limit rows, newest first. Used by the read-only
	// history endpoint.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close()
}
