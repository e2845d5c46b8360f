package setup

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/frostdev-ops/pma-tvoverlay/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// seedFile is the layout of a device seed file
type seedFile struct {
	Devices []config.DeviceSeed `yaml:"devices"`
}

// LoadSeedFile reads device seeds from a YAML file with a top-level
// "devices" list
func LoadSeedFile(path string) ([]config.DeviceSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return file.Devices, nil
}

// Seed registers every seed whose host:port is not configured yet. Seeds are
// imported without a connection test so devices that are off at startup
// still get a registration. Invalid seeds are logged and skipped.
func (m *Manager) Seed(ctx context.Context, seeds []config.DeviceSeed) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := 0
	for _, seed := range seeds {
		log := m.logger.WithFields(logrus.Fields{"host": seed.Host, "port": seed.Port, "name": seed.Name})

		reg, err := m.prepare(ctx, Input{
			Host:       seed.Host,
			Port:       seed.Port,
			Name:       seed.Name,
			Identifier: seed.Identifier,
		})
		if errors.Is(err, ErrAlreadyConfigured) {
			log.Debug("Seed device already registered")
			continue
		}
		if err != nil {
			log.WithError(err).Warn("Skipping invalid device seed")
			continue
		}
		if _, err := m.create(ctx, reg, nil); err != nil {
			log.WithError(err).Error("Failed to import device seed")
			continue
		}
		created++
	}
	return created
}
