// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/digkill/TGSongBot/internal/config"
	"github.com/digkill/TGSongBot/internal/database"
)

// OpenDB opens a migrated SQLite database in the test's temp dir and closes it on cleanup.
func OpenDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := config.Config{DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "billing.db")}
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
