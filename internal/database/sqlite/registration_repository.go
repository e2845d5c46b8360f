package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database/repositories"
	"github.com/jmoiron/sqlx"
)

const registrationColumns = `id, host, port, name, identifier, hot_corner, default_shape, created_at, updated_at`

// RegistrationRepository implements repositories.RegistrationRepository
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository creates a new RegistrationRepository
func NewRegistrationRepository(db *sqlx.DB) repositories.RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create inserts a registration. A second registration for the same
// host:port fails with registry.ErrAlreadyConfigured.
func (r *RegistrationRepository) Create(ctx context.Context, reg *registry.Registration) error {
	now := time.Now().UTC()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	query := `
		INSERT INTO registrations (` + registrationColumns + `)
		VALUES (:id, :host, :port, :name, :identifier, :hot_corner, :default_shape, :created_at, :updated_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		if isUniqueViolation(err) {
			return registry.ErrAlreadyConfigured
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}

	return nil
}

// GetByID retrieves a registration by id
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*registry.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByAddress retrieves the registration for host:port
func (r *RegistrationRepository) GetByAddress(ctx context.Context, host string, port int) (*registry.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE host = ? AND port = ?`
	return r.getOne(ctx, query, host, port)
}

func (r *RegistrationRepository) getOne(ctx context.Context, query string, args ...interface{}) (*registry.Registration, error) {
	reg := &registry.Registration{}
	err := r.db.GetContext(ctx, reg, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

// GetAll retrieves all registrations, oldest first
func (r *RegistrationRepository) GetAll(ctx context.Context) ([]*registry.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations ORDER BY created_at, id`

	var regs []*registry.Registration
	if err := r.db.SelectContext(ctx, &regs, query); err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	return regs, nil
}

// Update stores host, port, name and identifier of an existing registration
func (r *RegistrationRepository) Update(ctx context.Context, reg *registry.Registration) error {
	reg.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE registrations
		SET host = :host, port = :port, name = :name, identifier = :identifier,
			hot_corner = :hot_corner, default_shape = :default_shape, updated_at = :updated_at
		WHERE id = :id
	`

	result, err := r.db.NamedExecContext(ctx, query, reg)
	if err != nil {
		if isUniqueViolation(err) {
			return registry.ErrAlreadyConfigured
		}
		return fmt.Errorf("failed to update registration: %w", err)
	}
	return requireAffected(result)
}

// UpdateLocalSettings stores the hot corner and default shape of a
// registration
func (r *RegistrationRepository) UpdateLocalSettings(ctx context.Context, id, hotCorner, defaultShape string) error {
	query := `UPDATE registrations SET hot_corner = ?, default_shape = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, hotCorner, defaultShape, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update local settings: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a registration and, through the foreign key, its device
// record
func (r *RegistrationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
