package suite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rocketscienceinc/nines-backend/internal/repository/storage"
)

// NewSQLite opens a migrated database in a temporary directory.
func NewSQLite(t *testing.T) (context.Context, *storage.Storage) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	t.Cleanup(cancel)

	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "nines.db"))
	if err != nil {
		t.Fatalf("could not open sqlite storage: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	if err = db.Init(ctx); err != nil {
		t.Fatalf("could not migrate sqlite storage: %v", err)
	}

	return ctx, db
}
