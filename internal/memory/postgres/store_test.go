package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nferro/voxloom/internal/memory"
	"github.com/nferro/voxloom/internal/memory/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if VOXLOOM_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOXLOOM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOXLOOM_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
// It calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	if _, err := cleanPool.Exec(ctx, "DROP TABLE IF EXISTS exchanges CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestAppendAndRecall(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Append(ctx, "what is your name", "I'm your hybrid voice assistant.")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.ID == 0 {
		t.Error("Append: want non-zero id")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Append: want non-zero created_at")
	}

	got, err := store.Recall(ctx, "your name")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if got != "I'm your hybrid voice assistant." {
		t.Errorf("Recall: got %q", got)
	}
}

func TestRecallCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, "Tell me a JOKE", "No."); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Recall(ctx, "joke")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if got != "No." {
		t.Errorf("Recall: got %q", got)
	}
}

func TestRecallFirstMatchWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, "play some music", "first"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := store.Append(ctx, "play some music please", "second"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.Recall(ctx, "music")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if got != "first" {
		t.Errorf("Recall: want lowest-id match %q, got %q", "first", got)
	}
}

func TestRecallNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Recall(ctx, "never stored"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Recall: want memory.ErrNotFound, got %v", err)
	}
}

func TestRecallLiteralMetacharacters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, "what is 100% of 50", "50"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// A bare % would match anything; the escaped query must match literally.
	if _, err := store.Recall(ctx, "200%"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Recall(200%%): want memory.ErrNotFound, got %v", err)
	}
	got, err := store.Recall(ctx, "100%")
	if err != nil {
		t.Fatalf("Recall(100%%): %v", err)
	}
	if got != "50" {
		t.Errorf("Recall(100%%): got %q", got)
	}
}

func TestRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, in := range []string{"one", "two", "three"} {
		if _, err := store.Append(ctx, in, "resp "+in); err != nil {
			t.Fatalf("Append(%q): %v", in, err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Recent: want 2 records, got %d", len(records))
	}
	if records[0].UserInput != "three" || records[1].UserInput != "two" {
		t.Errorf("Recent: want newest first, got %q then %q", records[0].UserInput, records[1].UserInput)
	}
}
