// Package setup creates, reconfigures, restores and removes device
// registrations and owns the runtime objects started for each of them.
package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/adapters/tvoverlay"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/idstore"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/payload"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database/models"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database/repositories"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrCannotConnect is returned when the connection test fails
	ErrCannotConnect = errors.New("cannot_connect")
	// ErrInvalidHost is returned for a blank host
	ErrInvalidHost = errors.New("invalid_host")
	// ErrInvalidPort is returned for a port outside 1-65535
	ErrInvalidPort = errors.New("invalid_port")

	ErrAlreadyConfigured = registry.ErrAlreadyConfigured
	ErrInvalidIdentifier = registry.ErrInvalidIdentifier
	ErrNotFound          = registry.ErrNotFound
)

const persistTimeout = 5 * time.Second

// Input is the data of a new registration
type Input struct {
	Host       string `json:"host" binding:"required"`
	Port       int    `json:"port"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// Options are the fields a registration can be reconfigured with. Zero
// values keep the current host and port; a blank identifier is derived from
// the name.
type Options struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Identifier string `json:"identifier"`
}

// Publisher receives state changes of running entries
type Publisher interface {
	PublishDeviceState(entryID string, state coordinator.State)
	PublishNotificationIDs(entryID string, ids []string)
	PublishRegistration(event string, reg registry.Registration)
}

// Registration events
const (
	EventAdded        = "added"
	EventReconfigured = "reconfigured"
	EventRemoved      = "removed"
)

// ServiceRegistrar turns the notification services on and off
type ServiceRegistrar interface {
	Register()
	Deregister()
}

// Config holds the defaults applied to new registrations
type Config struct {
	DefaultPort int
	DefaultName string
}

// Manager runs the registration lifecycle
type Manager struct {
	config        Config
	registry      *registry.Registry
	registrations repositories.RegistrationRepository
	devices       repositories.DeviceRepository
	idStorage     idstore.Storage
	scheduler     *coordinator.Scheduler
	services      ServiceRegistrar
	publisher     Publisher
	metrics       metrics.MetricsCollector
	logger        *logrus.Logger

	// mu serializes lifecycle operations
	mu sync.Mutex
}

// Dependencies bundles what a Manager needs
type Dependencies struct {
	Registry      *registry.Registry
	Registrations repositories.RegistrationRepository
	Devices       repositories.DeviceRepository
	IDStorage     idstore.Storage
	Scheduler     *coordinator.Scheduler
	Services      ServiceRegistrar
	Publisher     Publisher
	Metrics       metrics.MetricsCollector
	Logger        *logrus.Logger
}

// NewManager creates a Manager
func NewManager(cfg Config, deps Dependencies) *Manager {
	if cfg.DefaultPort == 0 {
		cfg.DefaultPort = tvoverlay.DefaultPort
	}
	if cfg.DefaultName == "" {
		cfg.DefaultName = tvoverlay.DefaultName
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopCollector{}
	}
	return &Manager{
		config:        cfg,
		registry:      deps.Registry,
		registrations: deps.Registrations,
		devices:       deps.Devices,
		idStorage:     deps.IDStorage,
		scheduler:     deps.Scheduler,
		services:      deps.Services,
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}
}

// Register validates in, tests the connection, persists the registration
// with its device record and starts it.
func (m *Manager) Register(ctx context.Context, in Input) (*registry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	client := tvoverlay.NewClient(reg.Host, reg.Port, m.logger)
	if !client.TestConnection(ctx) {
		return nil, ErrCannotConnect
	}

	return m.create(ctx, reg, client)
}

// prepare applies defaults, derives and validates the identifier and checks
// that host:port is not registered yet
func (m *Manager) prepare(ctx context.Context, in Input) (*registry.Registration, error) {
	host := strings.TrimSpace(in.Host)
	if host == "" {
		return nil, ErrInvalidHost
	}
	port := in.Port
	if port == 0 {
		port = m.config.DefaultPort
	}
	if port < 1 || port > 65535 {
		return nil, ErrInvalidPort
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = m.config.DefaultName
	}
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" {
		identifier = registry.SanitizeIdentifier(name)
	}
	if err := registry.ValidateIdentifier(identifier); err != nil {
		return nil, err
	}

	if _, ok := m.registry.FindByAddress(host, port); ok {
		return nil, ErrAlreadyConfigured
	}
	if _, err := m.registrations.GetByAddress(ctx, host, port); err == nil {
		return nil, ErrAlreadyConfigured
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	return &registry.Registration{
		ID:           uuid.NewString(),
		Host:         host,
		Port:         port,
		Name:         name,
		Identifier:   identifier,
		HotCorner:    payload.CornerTopStart,
		DefaultShape: payload.ShapeRounded,
	}, nil
}

func (m *Manager) create(ctx context.Context, reg *registry.Registration, client *tvoverlay.Client) (*registry.Entry, error) {
	if err := m.registrations.Create(ctx, reg); err != nil {
		return nil, err
	}

	device := &models.Device{ID: uuid.NewString(), RegistrationID: reg.ID, Name: reg.Name}
	if err := m.devices.Create(ctx, device); err != nil {
		if delErr := m.registrations.Delete(ctx, reg.ID); delErr != nil {
			m.logger.WithError(delErr).WithField("registration_id", reg.ID).Error("Failed to roll back registration")
		}
		return nil, err
	}

	entry, err := m.start(ctx, *reg, device.ID, client)
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"registration_id": reg.ID,
		"name":            reg.Name,
		"address":         reg.Address(),
		"identifier":      reg.Identifier,
	}).Info("TvOverlay device registered")
	m.publish(EventAdded, *reg)
	return entry, nil
}

// start builds and runs the client, coordinator and id store of reg. The
// first refresh may fail; the device then starts unavailable.
func (m *Manager) start(ctx context.Context, reg registry.Registration, deviceID string, client *tvoverlay.Client) (*registry.Entry, error) {
	logger := m.logger
	if client == nil {
		client = tvoverlay.NewClient(reg.Host, reg.Port, logger)
	}
	coord := coordinator.New(reg.Name, client, logger, m.metrics)

	ids := idstore.New(reg.ID, m.idStorage, logger)
	if err := ids.Load(ctx); err != nil {
		logger.WithError(err).WithField("registration_id", reg.ID).Warn("Starting with an empty notification id set")
	}

	entry := registry.NewEntry(reg, deviceID, client, coord, ids)
	entry.Own(coord.Subscribe(m.stateListener(reg, deviceID)))
	entry.Own(ids.Subscribe(func(current []string) {
		m.metrics.SetActiveNotificationIDs(reg.Name, len(current))
		if m.publisher != nil {
			m.publisher.PublishNotificationIDs(reg.ID, current)
		}
	}))

	if err := m.registry.Add(entry); err != nil {
		entry.Close()
		return nil, err
	}
	m.metrics.SetActiveNotificationIDs(reg.Name, len(ids.IDs()))

	if err := coord.Refresh(ctx); err != nil {
		logger.WithError(err).WithField("device", reg.Name).Warn("TvOverlay device not reachable yet")
	}

	if m.scheduler != nil {
		if err := m.scheduler.Add(reg.ID, coord); err != nil {
			logger.WithError(err).WithField("device", reg.Name).Error("Failed to schedule polling")
		}
	}
	if m.services != nil {
		m.services.Register()
	}
	return entry, nil
}

// stateListener forwards coordinator updates and records new device
// versions. Coordinator listeners run one refresh at a time.
func (m *Manager) stateListener(reg registry.Registration, deviceID string) func(coordinator.State) {
	var lastVersion string
	return func(state coordinator.State) {
		if m.publisher != nil {
			m.publisher.PublishDeviceState(reg.ID, state)
		}
		if state.Version == "" || state.Version == lastVersion || deviceID == "" {
			return
		}
		lastVersion = state.Version
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.devices.UpdateVersion(ctx, deviceID, state.Version); err != nil {
			m.logger.WithError(err).WithField("device", reg.Name).Warn("Failed to record device version")
		}
	}
}

// stop halts polling and releases the entry's subscriptions
func (m *Manager) stop(entry *registry.Entry) {
	if m.scheduler != nil {
		m.scheduler.Remove(entry.ID())
	}
	entry.Close()
	m.registry.Remove(entry.ID())
	m.metrics.RemoveDevice(entry.Registration.Name)
}

// Reconfigure changes host, port and identifier of a registration after a
// successful connection test, then restarts it. Name, local settings and
// notification ids are kept.
func (m *Manager) Reconfigure(ctx context.Context, id string, opts Options) (*registry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.registry.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	reg := entry.Registration
	if host := strings.TrimSpace(opts.Host); host != "" {
		reg.Host = host
	}
	if opts.Port != 0 {
		reg.Port = opts.Port
	}
	if reg.Port < 1 || reg.Port > 65535 {
		return nil, ErrInvalidPort
	}
	reg.Identifier = strings.TrimSpace(opts.Identifier)
	if reg.Identifier == "" {
		reg.Identifier = registry.SanitizeIdentifier(reg.Name)
	}
	if err := registry.ValidateIdentifier(reg.Identifier); err != nil {
		return nil, err
	}
	if other, ok := m.registry.FindByAddress(reg.Host, reg.Port); ok && other.ID() != id {
		return nil, ErrAlreadyConfigured
	}

	client := tvoverlay.NewClient(reg.Host, reg.Port, m.logger)
	if !client.TestConnection(ctx) {
		return nil, ErrCannotConnect
	}

	defaults := entry.Defaults()
	reg.HotCorner, reg.DefaultShape = defaults.HotCorner, defaults.DefaultShape
	if err := m.registrations.Update(ctx, &reg); err != nil {
		return nil, err
	}

	m.stop(entry)
	restarted, err := m.start(ctx, reg, entry.DeviceID, client)
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"registration_id": reg.ID,
		"address":         reg.Address(),
		"identifier":      reg.Identifier,
	}).Info("TvOverlay device reconfigured")
	m.publish(EventReconfigured, reg)
	return restarted, nil
}

// Remove stops a registration and deletes its records and notification id
// set. The services are deregistered once no registration remains.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.registry.Get(id)
	if !ok {
		return ErrNotFound
	}

	m.stop(entry)
	if m.registry.Len() == 0 && m.services != nil {
		m.services.Deregister()
	}

	var errs []error
	if entry.IDs != nil {
		if err := entry.IDs.Purge(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.devices.DeleteByRegistration(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if err := m.registrations.Delete(ctx, id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		errs = append(errs, err)
	}

	m.logger.WithFields(logrus.Fields{
		"registration_id": id,
		"name":            entry.Registration.Name,
	}).Info("TvOverlay device removed")
	m.publish(EventRemoved, entry.Registration)

	if len(errs) > 0 {
		return fmt.Errorf("failed to delete registration data: %w", errors.Join(errs...))
	}
	return nil
}

// Restore starts every persisted registration. Devices that are offline
// start unavailable.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	regs, err := m.registrations.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, reg := range regs {
		if _, running := m.registry.Get(reg.ID); running {
			continue
		}
		deviceID, err := m.ensureDevice(ctx, reg)
		if err != nil {
			m.logger.WithError(err).WithField("registration_id", reg.ID).Error("Failed to restore device record")
			continue
		}
		if _, err := m.start(ctx, *reg, deviceID, nil); err != nil {
			m.logger.WithError(err).WithField("registration_id", reg.ID).Error("Failed to restore registration")
			continue
		}
		started++
	}

	m.logger.WithField("count", started).Info("TvOverlay registrations restored")
	return started, nil
}

func (m *Manager) ensureDevice(ctx context.Context, reg *registry.Registration) (string, error) {
	device, err := m.devices.GetByRegistration(ctx, reg.ID)
	if err == nil {
		return device.ID, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return "", err
	}
	device = &models.Device{ID: uuid.NewString(), RegistrationID: reg.ID, Name: reg.Name}
	if err := m.devices.Create(ctx, device); err != nil {
		return "", err
	}
	return device.ID, nil
}

// Entries returns the running registrations
func (m *Manager) Entries() []*registry.Entry {
	return m.registry.All()
}

// Get returns a running registration
func (m *Manager) Get(id string) (*registry.Entry, bool) {
	return m.registry.Get(id)
}

// DeviceHealth reports one health status per running registration, keyed by
// identifier. Unreachable devices are degraded, never unhealthy.
func (m *Manager) DeviceHealth() map[string]metrics.HealthStatus {
	out := make(map[string]metrics.HealthStatus)
	for _, entry := range m.registry.All() {
		status := metrics.HealthStatus{
			Status:    metrics.StatusHealthy,
			Message:   "Device reachable",
			Timestamp: time.Now(),
			Details: map[string]interface{}{
				"host": entry.Registration.Host,
				"port": entry.Registration.Port,
			},
		}
		if entry.Coordinator == nil || !entry.Coordinator.Available() {
			status.Status = metrics.StatusDegraded
			status.Message = "Device unreachable"
			if entry.Coordinator != nil && entry.Coordinator.LastError() != nil {
				status.Details["error"] = entry.Coordinator.LastError().Error()
			}
		}
		out[entry.Registration.Identifier] = status
	}
	return out
}

// Shutdown stops every running registration without deleting anything
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.registry.All() {
		m.stop(entry)
	}
}

func (m *Manager) publish(event string, reg registry.Registration) {
	if m.publisher != nil {
		m.publisher.PublishRegistration(event, reg)
	}
}
