package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kidpoints/internal/database"
)

// KVRepository handles the device-local kv_store table
type KVRepository struct {
	db database.DBTX
}

// NewKVRepository creates a new key-value repository
func NewKVRepository(db database.DBTX) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the stored text for key and whether it exists
func (r *KVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT kv_value FROM kv_store WHERE kv_key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, true, nil
}

// Set updates or inserts a value
func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, r.db.GetDialect().UpsertKV(), key, value); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM kv_store WHERE kv_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// DeleteAll empties the table
func (r *KVRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM kv_store"); err != nil {
		return fmt.Errorf("failed to clear kv store: %w", err)
	}
	return nil
}

// All returns every stored pair
func (r *KVRepository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT kv_key, kv_value FROM kv_store ORDER BY kv_key")
	if err != nil {
		return nil, fmt.Errorf("failed to list kv store: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan kv row: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
