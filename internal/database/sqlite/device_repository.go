package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/database/models"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database/repositories"
	"github.com/jmoiron/sqlx"
)

// DeviceRepository implements repositories.DeviceRepository
type DeviceRepository struct {
	db *sqlx.DB
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(db *sqlx.DB) repositories.DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create inserts a device record
func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}
	if device.Manufacturer == "" {
		device.Manufacturer = "TvOverlay"
	}
	if device.Model == "" {
		device.Model = "TvOverlay"
	}

	query := `
		INSERT INTO devices (id, registration_id, name, manufacturer, model, sw_version, created_at)
		VALUES (:id, :registration_id, :name, :manufacturer, :model, :sw_version, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, device); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// GetByID retrieves a device record
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*models.Device, error) {
	return r.getOne(ctx, `SELECT * FROM devices WHERE id = ?`, id)
}

// GetByRegistration retrieves the device record of a registration
func (r *DeviceRepository) GetByRegistration(ctx context.Context, registrationID string) (*models.Device, error) {
	return r.getOne(ctx, `SELECT * FROM devices WHERE registration_id = ?`, registrationID)
}

func (r *DeviceRepository) getOne(ctx context.Context, query string, arg string) (*models.Device, error) {
	device := &models.Device{}
	err := r.db.GetContext(ctx, device, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

// UpdateVersion records the software version last reported by the device
func (r *DeviceRepository) UpdateVersion(ctx context.Context, id, version string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE devices SET sw_version = ? WHERE id = ?`, version, id)
	if err != nil {
		return fmt.Errorf("failed to update device version: %w", err)
	}
	return requireAffected(result)
}

// DeleteByRegistration removes the device record of a registration. A
// missing record is not an error.
func (r *DeviceRepository) DeleteByRegistration(ctx context.Context, registrationID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE registration_id = ?`, registrationID); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}

// IdentifierForDevice returns the registration identifier a device record
// belongs to
func (r *DeviceRepository) IdentifierForDevice(ctx context.Context, deviceID string) (string, bool, error) {
	query := `
		SELECT r.identifier
		FROM devices d
		JOIN registrations r ON r.id = d.registration_id
		WHERE d.id = ?
	`

	var identifier string
	err := r.db.GetContext(ctx, &identifier, query, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up device: %w", err)
	}
	return identifier, true, nil
}
