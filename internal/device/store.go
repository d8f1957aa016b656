package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StoreRepository persists the per-device key/value store.
type StoreRepository interface {
	// Load returns every stored value for the device. Unknown devices yield
	// an empty map.
	Load(ctx context.Context, deviceID string) (map[string]string, error)

	// Set upserts one value.
	Set(ctx context.Context, deviceID, key, value string) error
}

// SQLiteStoreRepository implements StoreRepository on the device_store table.
type SQLiteStoreRepository struct {
	db *sql.DB
}

// NewSQLiteStoreRepository creates a store repository on an open connection.
func NewSQLiteStoreRepository(db *sql.DB) *SQLiteStoreRepository {
	return &SQLiteStoreRepository{db: db}
}

// Load returns the device's stored values.
func (r *SQLiteStoreRepository) Load(ctx context.Context, deviceID string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT key, value FROM device_store WHERE device_id = ?", deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying device store: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning device store: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device store: %w", err)
	}
	return values, nil
}

// Set upserts a stored value. The device must exist.
func (r *SQLiteStoreRepository) Set(ctx context.Context, deviceID, key, value string) error {
	if deviceID == "" || key == "" {
		return fmt.Errorf("device id and key are required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_store (device_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		deviceID, key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing device store: %w", err)
	}
	return nil
}
