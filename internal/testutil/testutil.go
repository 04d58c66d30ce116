// Package testutil provides shared test helpers for setting up databases and catalogs.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/finplan/internal/catalog"
	"github.com/starford/finplan/internal/store"
)

// TestStore creates a temporary SQLite database that is automatically cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "finplan-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCatalog writes content to a catalog file in a temp dir, syncs it into
// db and returns the catalog.
func TestCatalog(t *testing.T, db *store.DB, content string) *catalog.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := catalog.NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	c := catalog.New(f, db, Logger())
	if _, err := c.Sync(t.Context()); err != nil {
		t.Fatal(err)
	}
	return c
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
