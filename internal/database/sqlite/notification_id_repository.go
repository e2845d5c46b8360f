package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/database/models"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database/repositories"
	"github.com/jmoiron/sqlx"
)

// NotificationIDRepository implements repositories.NotificationIDRepository.
// Each key holds one {"ids": [...]} document.
type NotificationIDRepository struct {
	db *sqlx.DB
}

// NewNotificationIDRepository creates a new NotificationIDRepository
func NewNotificationIDRepository(db *sqlx.DB) repositories.NotificationIDRepository {
	return &NotificationIDRepository{db: db}
}

// Load returns the stored ids, or nil when nothing was saved under key
func (r *NotificationIDRepository) Load(ctx context.Context, key string) ([]string, error) {
	var set models.NotificationIDSet
	err := r.db.GetContext(ctx, &set, `SELECT key, version, data, updated_at FROM notification_id_stores WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load notification ids: %w", err)
	}

	var data models.NotificationIDData
	if err := json.Unmarshal([]byte(set.Data), &data); err != nil {
		return nil, fmt.Errorf("failed to decode notification ids: %w", err)
	}
	if data.IDs == nil {
		data.IDs = []string{}
	}
	return data.IDs, nil
}

// Save replaces the stored ids under key
func (r *NotificationIDRepository) Save(ctx context.Context, key string, version int, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(models.NotificationIDData{IDs: ids})
	if err != nil {
		return fmt.Errorf("failed to encode notification ids: %w", err)
	}

	query := `
		INSERT INTO notification_id_stores (key, version, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			version = excluded.version,
			data = excluded.data,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, key, version, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save notification ids: %w", err)
	}
	return nil
}

// Delete removes the ids stored under key
func (r *NotificationIDRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notification_id_stores WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete notification ids: %w", err)
	}
	return nil
}
