package device

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-bluesound/migrations"
)

// setupTestDB opens a temporary database with the bridge schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db.DB
}

func testDevice(id, name, address string) *Device {
	return &Device{
		ID:      id,
		Name:    name,
		Address: address,
		Port:    DefaultPort,
		Polling: DefaultPolling,
	}
}
