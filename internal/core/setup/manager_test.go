package setup

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/config"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/idstore"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database/repositories"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type overlayDevice struct {
	mu      sync.Mutex
	version string
	tests   int
}

func (d *overlayDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r.Method == http.MethodGet {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"overlay":       map[string]any{"hotCorner": "top_start"},
			"notifications": map[string]any{},
			"settings":      map[string]any{},
			"status":        map[string]any{"version": d.version},
		})
		return
	}
	if r.URL.Path == "/notify" {
		d.tests++
	}
	w.WriteHeader(http.StatusOK)
}

func startDevice(t *testing.T, version string) (*overlayDevice, string, int) {
	t.Helper()
	device := &overlayDevice{version: version}
	server := httptest.NewServer(device)
	t.Cleanup(server.Close)
	host, port := splitAddr(t, server.Listener.Addr().String())
	return device, host, port
}

// deadAddress returns an address nothing listens on
func deadAddress(t *testing.T) (string, int) {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.Listener.Addr().String()
	server.Close()
	return splitAddr(t, addr)
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

type recordingServices struct {
	mu           sync.Mutex
	registered   int
	deregistered int
}

func (s *recordingServices) Register() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered++
}

func (s *recordingServices) Deregister() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deregistered++
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	states int
	ids    [][]string
}

func (p *recordingPublisher) PublishDeviceState(string, coordinator.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states++
}

func (p *recordingPublisher) PublishNotificationIDs(_ string, ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, ids)
}

func (p *recordingPublisher) PublishRegistration(event string, _ registry.Registration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type harness struct {
	manager   *Manager
	registry  *registry.Registry
	repos     *database.Repositories
	scheduler *coordinator.Scheduler
	services  *recordingServices
	publisher *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := database.Initialize(config.DatabaseConfig{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, logger))

	return newHarnessWithRepos(t, database.NewRepositories(db), logger)
}

func newHarnessWithRepos(t *testing.T, repos *database.Repositories, logger *logrus.Logger) *harness {
	h := &harness{
		registry:  registry.New(),
		repos:     repos,
		scheduler: coordinator.NewScheduler(time.Hour, logger),
		services:  &recordingServices{},
		publisher: &recordingPublisher{},
	}
	h.manager = NewManager(Config{}, Dependencies{
		Registry:      h.registry,
		Registrations: repos.Registration,
		Devices:       repos.Device,
		IDStorage:     repos.NotificationIDs,
		Scheduler:     h.scheduler,
		Services:      h.services,
		Publisher:     h.publisher,
		Logger:        logger,
	})
	t.Cleanup(h.manager.Shutdown)
	return h
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	device, host, port := startDevice(t, "1.4.0")

	entry, err := h.manager.Register(ctx, Input{Host: host, Port: port, Name: "Living Room"})
	require.NoError(t, err)

	assert.Equal(t, "living_room", entry.Registration.Identifier)
	assert.Equal(t, "top_start", entry.HotCorner())
	assert.Equal(t, "rounded", entry.DefaultShape())
	assert.True(t, entry.Coordinator.Available())
	assert.Equal(t, 1, device.tests)
	assert.True(t, h.scheduler.Scheduled(entry.ID()))
	assert.Equal(t, 1, h.services.registered)
	assert.Equal(t, []string{EventAdded}, h.publisher.events)
	assert.GreaterOrEqual(t, h.publisher.states, 1)

	stored, err := h.repos.Registration.GetByID(ctx, entry.ID())
	require.NoError(t, err)
	assert.Equal(t, "Living Room", stored.Name)

	record, err := h.repos.Device.GetByRegistration(ctx, entry.ID())
	require.NoError(t, err)
	assert.Equal(t, entry.DeviceID, record.ID)
	assert.Equal(t, "1.4.0", record.SWVersion)
}

func TestRegisterDefaults(t *testing.T) {
	h := newHarness(t)
	_, host, port := startDevice(t, "1.0")

	entry, err := h.manager.Register(context.Background(), Input{Host: host, Port: port})
	require.NoError(t, err)
	assert.Equal(t, "TvOverlay", entry.Registration.Name)
	assert.Equal(t, "tvoverlay", entry.Registration.Identifier)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, host, port := startDevice(t, "1.0")

	_, err := h.manager.Register(ctx, Input{Host: "  "})
	assert.ErrorIs(t, err, ErrInvalidHost)

	_, err = h.manager.Register(ctx, Input{Host: host, Port: 70000})
	assert.ErrorIs(t, err, ErrInvalidPort)

	_, err = h.manager.Register(ctx, Input{Host: host, Port: port, Identifier: "Not Valid"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = h.manager.Register(ctx, Input{Host: host, Port: port, Name: "Den"})
	require.NoError(t, err)
	_, err = h.manager.Register(ctx, Input{Host: host, Port: port, Name: "Den again"})
	assert.ErrorIs(t, err, ErrAlreadyConfigured)

	assert.Equal(t, 1, h.registry.Len())
}

func TestRegisterCannotConnect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	host, port := deadAddress(t)

	_, err := h.manager.Register(ctx, Input{Host: host, Port: port, Name: "Offline"})
	assert.ErrorIs(t, err, ErrCannotConnect)

	all, err := h.repos.Registration.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, h.services.registered)
}

func TestReconfigure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, host, port := startDevice(t, "1.0")
	_, newHost, newPort := startDevice(t, "2.0")

	entry, err := h.manager.Register(ctx, Input{Host: host, Port: port, Name: "Bedroom", Identifier: "bed"})
	require.NoError(t, err)
	entry.SetDefaultShape("circle")
	require.NoError(t, entry.IDs.Add(ctx, "weather"))

	updated, err := h.manager.Reconfigure(ctx, entry.ID(), Options{Host: newHost, Port: newPort})
	require.NoError(t, err)

	assert.Equal(t, newHost, updated.Client.Host())
	assert.Equal(t, newPort, updated.Client.Port())
	assert.Equal(t, "bedroom", updated.Registration.Identifier)
	assert.Equal(t, "circle", updated.DefaultShape())
	assert.Equal(t, []string{"weather"}, updated.IDs.IDs())
	assert.Equal(t, entry.DeviceID, updated.DeviceID)
	assert.Equal(t, "2.0", updated.Coordinator.Version())

	current, ok := h.registry.Get(entry.ID())
	require.True(t, ok)
	assert.Same(t, updated, current)

	stored, err := h.repos.Registration.GetByID(ctx, entry.ID())
	require.NoError(t, err)
	assert.Equal(t, newPort, stored.Port)
	assert.Equal(t, "circle", stored.DefaultShape)
	assert.Contains(t, h.publisher.events, EventReconfigured)
}

func TestReconfigureFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, hostA, portA := startDevice(t, "1.0")
	_, hostB, portB := startDevice(t, "1.0")
	deadHost, deadPort := deadAddress(t)

	a, err := h.manager.Register(ctx, Input{Host: hostA, Port: portA, Name: "A"})
	require.NoError(t, err)
	_, err = h.manager.Register(ctx, Input{Host: hostB, Port: portB, Name: "B"})
	require.NoError(t, err)

	_, err = h.manager.Reconfigure(ctx, "missing", Options{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.manager.Reconfigure(ctx, a.ID(), Options{Host: hostB, Port: portB})
	assert.ErrorIs(t, err, ErrAlreadyConfigured)

	_, err = h.manager.Reconfigure(ctx, a.ID(), Options{Identifier: "Bad Id"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = h.manager.Reconfigure(ctx, a.ID(), Options{Host: deadHost, Port: deadPort})
	assert.ErrorIs(t, err, ErrCannotConnect)

	current, ok := h.registry.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, current)
	assert.Equal(t, portA, current.Registration.Port)
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, hostA, portA := startDevice(t, "1.0")
	_, hostB, portB := startDevice(t, "1.0")

	a, err := h.manager.Register(ctx, Input{Host: hostA, Port: portA, Name: "A"})
	require.NoError(t, err)
	b, err := h.manager.Register(ctx, Input{Host: hostB, Port: portB, Name: "B"})
	require.NoError(t, err)
	require.NoError(t, a.IDs.Add(ctx, "alarm"))

	require.NoError(t, h.manager.Remove(ctx, a.ID()))
	assert.Equal(t, 0, h.services.deregistered)
	assert.False(t, h.scheduler.Scheduled(a.ID()))

	_, err = h.repos.Registration.GetByID(ctx, a.ID())
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = h.repos.Device.GetByRegistration(ctx, a.ID())
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	ids, err := h.repos.NotificationIDs.Load(ctx, idstore.KeyFor(a.ID()))
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, h.manager.Remove(ctx, b.ID()))
	assert.Equal(t, 1, h.services.deregistered)
	assert.Zero(t, h.registry.Len())

	assert.ErrorIs(t, h.manager.Remove(ctx, a.ID()), ErrNotFound)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	first := newHarness(t)
	_, host, port := startDevice(t, "1.0")

	entry, err := first.manager.Register(ctx, Input{Host: host, Port: port, Name: "Kitchen"})
	require.NoError(t, err)
	require.NoError(t, entry.IDs.Add(ctx, "timer"))
	entry.SetHotCorner("bottom_end")
	require.NoError(t, first.repos.Registration.UpdateLocalSettings(ctx, entry.ID(), "bottom_end", "rounded"))
	first.manager.Shutdown()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	second := newHarnessWithRepos(t, first.repos, logger)

	started, err := second.manager.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	restored, ok := second.registry.Get(entry.ID())
	require.True(t, ok)
	assert.Equal(t, entry.DeviceID, restored.DeviceID)
	assert.Equal(t, []string{"timer"}, restored.IDs.IDs())
	assert.Equal(t, "bottom_end", restored.HotCorner())
	assert.Equal(t, 1, second.services.registered)

	again, err := second.manager.Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestSeedOfflineDevice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	host, port := deadAddress(t)

	h.manager.Seed(ctx, []config.DeviceSeed{{Host: host, Port: port, Name: "Garage"}})

	entry, ok := h.registry.FindByIdentifier("garage")
	require.True(t, ok)
	assert.False(t, entry.Coordinator.Available())
	assert.True(t, h.scheduler.Scheduled(entry.ID()))
	assert.Equal(t, 1, h.services.registered)

	health := h.manager.DeviceHealth()
	require.Contains(t, health, "garage")
	assert.Equal(t, metrics.StatusDegraded, health["garage"].Status)
	assert.NotEmpty(t, health["garage"].Details["error"])
}

func TestSeed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, host, port := startDevice(t, "1.0")

	seeds := []config.DeviceSeed{
		{Host: host, Port: port, Name: "Office"},
		{Host: host, Port: port, Name: "Office duplicate"},
		{Host: "", Name: "No host"},
		{Host: "10.0.0.9", Name: "Bad", Identifier: "Bad Id"},
	}
	assert.Equal(t, 1, h.manager.Seed(ctx, seeds))
	assert.Equal(t, 0, h.manager.Seed(ctx, seeds))

	entry, ok := h.registry.FindByIdentifier("office")
	require.True(t, ok)
	assert.Equal(t, port, entry.Registration.Port)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	content := `devices:
  - host: 192.168.1.20
    name: Living Room
  - host: 192.168.1.21
    port: 5002
    identifier: bedroom
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	seeds, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, config.DeviceSeed{Host: "192.168.1.20", Name: "Living Room"}, seeds[0])
	assert.Equal(t, 5002, seeds[1].Port)
	assert.Equal(t, "bedroom", seeds[1].Identifier)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
