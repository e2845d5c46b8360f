package repositories

import (
	"context"
	"errors"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// RegistrationRepository defines registration data access methods
type RegistrationRepository interface {
	Create(ctx context.Context, reg *registry.Registration) error
	GetByID(ctx context.Context, id string) (*registry.Registration, error)
	GetByAddress(ctx context.Context, host string, port int) (*registry.Registration, error)
	GetAll(ctx context.Context) ([]*registry.Registration, error)
	Update(ctx context.Context, reg *registry.Registration) error
	UpdateLocalSettings(ctx context.Context, id, hotCorner, defaultShape string) error
	Delete(ctx context.Context, id string) error
}

// DeviceRepository defines device record data access methods
type DeviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id string) (*models.Device, error)
	GetByRegistration(ctx context.Context, registrationID string) (*models.Device, error)
	UpdateVersion(ctx context.Context, id, version string) error
	DeleteByRegistration(ctx context.Context, registrationID string) error
	IdentifierForDevice(ctx context.Context, deviceID string) (string, bool, error)
}

// NotificationIDRepository persists fixed notification id sets
type NotificationIDRepository interface {
	Load(ctx context.Context, key string) ([]string, error)
	Save(ctx context.Context, key string, version int, ids []string) error
	Delete(ctx context.Context, key string) error
}
