package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/faunatrack/server/internal/db"
	"github.com/faunatrack/server/internal/migrate"
)

// NewTestDB opens an in-memory SQLite database with every migration
// applied. It is closed when the test completes.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})

	if err := migrate.Run(ctx, database); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return database
}

func NewTestUoW(database *db.DB) db.UnitOfWork {
	return db.NewUnitOfWork(database)
}

// SeedUser inserts a user row directly and returns its id. The password
// hash is a placeholder that never verifies.
func SeedUser(t *testing.T, database *db.DB, username string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := database.ExecContext(context.Background(), `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, username, "!", "ranger", db.FormatTimestamp(time.Now()))
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return id
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, database *db.DB, table string) int {
	t.Helper()

	var n int
	if err := database.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
