package database

import (
	"github.com/frostdev-ops/pma-tvoverlay/internal/database/repositories"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database/sqlite"
	"github.com/jmoiron/sqlx"
)

// Repositories holds all repository instances
type Repositories struct {
	Registration    repositories.RegistrationRepository
	Device          repositories.DeviceRepository
	NotificationIDs repositories.NotificationIDRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Registration:    sqlite.NewRegistrationRepository(db),
		Device:          sqlite.NewDeviceRepository(db),
		NotificationIDs: sqlite.NewNotificationIDRepository(db),
	}
}
