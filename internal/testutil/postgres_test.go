//go:build integration
// +build integration

package testutil

import (
	"context"
	"testing"
)

// TestSetupTestDB_Integration verifies that SetupTestDB creates a fully functional
// PostgreSQL container with pgvector extension and required schema.
//
// This test validates the test infrastructure itself, ensuring:
//   - Docker container starts successfully
//   - PostgreSQL is accessible
//   - pgvector extension is installed
//   - Database migrations run successfully
//   - All required tables are created
//
// Run with: go test -tags=integration ./internal/testutil -v
func TestSetupTestDB_Integration(t *testing.T) {
	dbContainer := SetupTestDB(t)

	ctx := context.Background()
	if err := dbContainer.Pool.Ping(ctx); err != nil {
		t.Fatalf("Pool.Ping() unexpected error: %v", err)
	}

	// Verify pgvector extension is installed
	var hasExtension bool
	err := dbContainer.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&hasExtension)
	if err != nil {
		t.Fatalf("QueryRow(vector extension check) unexpected error: %v", err)
	}
	if !hasExtension {
		t.Error("pgvector extension installed = false, want true")
	}

	// Verify all required tables exist, including golang-migrate's bookkeeping.
	tables := []string{"documents", "sessions", "messages", "schema_migrations"}
	for _, table := range tables {
		var exists bool
		err = dbContainer.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table).Scan(&exists)
		if err != nil {
			t.Fatalf("QueryRow(table %q check) unexpected error: %v", table, err)
		}
		if !exists {
			t.Errorf("table %q exists = false, want true", table)
		}
	}

	// The migration version must be clean after setup.
	var dirty bool
	if err := dbContainer.Pool.QueryRow(ctx,
		"SELECT dirty FROM schema_migrations").Scan(&dirty); err != nil {
		t.Fatalf("QueryRow(schema_migrations) unexpected error: %v", err)
	}
	if dirty {
		t.Error("schema_migrations dirty = true, want false")
	}
}

func TestCleanTables_Integration(t *testing.T) {
	dbContainer := SetupTestDB(t)
	ctx := context.Background()

	_, err := dbContainer.Pool.Exec(ctx,
		`INSERT INTO sessions (title) VALUES ('to be truncated')`)
	if err != nil {
		t.Fatalf("seeding session: %v", err)
	}

	CleanTables(t, dbContainer.Pool)

	var count int
	if err := dbContainer.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		t.Fatalf("counting sessions: %v", err)
	}
	if count != 0 {
		t.Errorf("sessions count after CleanTables = %d, want 0", count)
	}
}
