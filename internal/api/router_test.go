package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/api/handlers"
	"github.com/frostdev-ops/pma-tvoverlay/internal/api/middleware"
	"github.com/frostdev-ops/pma-tvoverlay/internal/config"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/entities"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/resolver"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/services"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/setup"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database"
	"github.com/frostdev-ops/pma-tvoverlay/internal/websocket"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deviceRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// overlayDevice answers like the overlay app and records what it receives
type overlayDevice struct {
	mu       sync.Mutex
	requests []deviceRequest
}

func (d *overlayDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r.Method == http.MethodGet {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"overlay":       map[string]any{"hotCorner": "top_start", "overlayVisibility": 0},
			"notifications": map[string]any{"displayNotifications": true},
			"settings":      map[string]any{"pixelShift": false},
			"status":        map[string]any{"version": "1.4.0"},
		})
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	d.requests = append(d.requests, deviceRequest{Method: r.Method, Path: r.URL.Path, Body: body})
	w.WriteHeader(http.StatusOK)
}

func (d *overlayDevice) received(path string) []deviceRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []deviceRequest
	for _, r := range d.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

type testServer struct {
	router  *gin.Engine
	manager *setup.Manager
	device  *overlayDevice
	host    string
	port    int
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.Auth.JWTSecret = "test-secret"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	log := logger.NewWithOptions(logger.Options{Level: "error", Output: io.Discard})

	db, err := database.Initialize(config.DatabaseConfig{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, log.Logger))
	repos := database.NewRepositories(db)

	reg := registry.New()
	dispatcher := services.NewDispatcher(resolver.New(reg, repos.Device, log.Logger), log.Logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := websocket.NewHub(websocket.DefaultConfig(), log.Logger, nil)
	go hub.Run(ctx)

	manager := setup.NewManager(setup.Config{}, setup.Dependencies{
		Registry:      reg,
		Registrations: repos.Registration,
		Devices:       repos.Device,
		IDStorage:     repos.NotificationIDs,
		Scheduler:     coordinator.NewScheduler(time.Hour, log.Logger),
		Services:      dispatcher,
		Publisher:     hub,
		Logger:        log.Logger,
	})
	t.Cleanup(manager.Shutdown)

	health := metrics.NewHealthChecker()
	health.SetDatabaseChecker(func() metrics.HealthStatus {
		return metrics.HealthStatus{Status: metrics.StatusHealthy, Timestamp: time.Now()}
	})

	h := handlers.NewHandlers(cfg, handlers.Dependencies{
		Dispatcher: dispatcher,
		Setup:      manager,
		Controller: entities.NewController(repos.Registration, log.Logger),
		Health:     health,
		Hub:        hub,
	}, log.Logger)

	device := &overlayDevice{}
	server := httptest.NewServer(device)
	t.Cleanup(server.Close)
	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return &testServer{
		router:  NewRouter(cfg, log, h, Options{RateLimiter: middleware.NewRateLimiter(ctx, 1000, 1000)}),
		manager: manager,
		device:  device,
		host:    host,
		port:    port,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func (s *testServer) register(t *testing.T, name string) string {
	t.Helper()
	rec, resp := s.do(t, http.MethodPost, "/api/v1/devices", map[string]any{
		"host": s.host, "port": s.port, "name": name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := resp["data"].(map[string]any)
	return data["id"].(string)
}

func TestServicesUnavailableWithoutRegistrations(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec, resp := s.do(t, http.MethodPost, "/api/v1/services/notify", map[string]any{"host": s.host, "message": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_registered", resp["key"])

	rec, resp = s.do(t, http.MethodGet, "/api/v1/services", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, resp["registered"])
}

func TestNotifyThroughRegisteredDevice(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.register(t, "Living Room")
	connectionTests := len(s.device.received("/notify"))

	rec, resp := s.do(t, http.MethodPost, "/api/v1/services/notify", map[string]any{
		"target":  "living_room",
		"title":   "Door",
		"message": "Front door opened",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := resp["data"].(map[string]any)
	assert.Equal(t, "notify", data["service"])
	assert.Equal(t, "living_room", data["identifier"])

	sent := s.device.received("/notify")
	require.Len(t, sent, connectionTests+1)
	assert.Equal(t, "Front door opened", sent[len(sent)-1].Body["message"])
}

func TestServiceErrorStatuses(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.register(t, "Living Room")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		key    string
	}{
		{"unknown target", "/api/v1/services/notify", map[string]any{"target": "garage", "message": "x"}, http.StatusNotFound, "device_not_found"},
		{"no address", "/api/v1/services/notify", map[string]any{"message": "x"}, http.StatusBadRequest, "target_required"},
		{"fixed without id", "/api/v1/services/notify_fixed", map[string]any{"target": "living_room", "message": "x"}, http.StatusBadRequest, "id_required"},
		{"empty body", "/api/v1/services/clear_fixed", nil, http.StatusBadRequest, "target_required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.key, resp["key"])
		})
	}
}

func TestNotifyFixedAndClear(t *testing.T) {
	s := newTestServer(t, testConfig())
	id := s.register(t, "Living Room")

	rec, _ := s.do(t, http.MethodPost, "/api/v1/services/notify_fixed", map[string]any{
		"target": "living_room", "id": "washer", "message": "Laundry done",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, resp := s.do(t, http.MethodGet, "/api/v1/devices/"+id, nil)
	device := resp["data"].(map[string]any)
	assert.Equal(t, []any{"washer"}, device["active_notification_ids"])

	rec, _ = s.do(t, http.MethodPost, "/api/v1/services/clear_fixed", map[string]any{"target": "living_room", "id": "washer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, resp = s.do(t, http.MethodGet, "/api/v1/devices/"+id, nil)
	device = resp["data"].(map[string]any)
	assert.Empty(t, device["active_notification_ids"])
}

func TestDeviceLifecycle(t *testing.T) {
	s := newTestServer(t, testConfig())
	id := s.register(t, "Living Room")

	rec, resp := s.do(t, http.MethodPost, "/api/v1/devices", map[string]any{"host": s.host, "port": s.port})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_configured", resp["key"])

	rec, resp = s.do(t, http.MethodGet, "/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp["data"], 1)
	assert.Equal(t, float64(1), resp["meta"].(map[string]any)["count"])

	rec, resp = s.do(t, http.MethodPut, "/api/v1/devices/"+id, map[string]any{"identifier": "Bad ID"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_identifier", resp["key"])

	rec, resp = s.do(t, http.MethodPut, "/api/v1/devices/"+id, map[string]any{"identifier": "lounge"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "lounge", resp["data"].(map[string]any)["identifier"])

	rec, _ = s.do(t, http.MethodPost, "/api/v1/devices/"+id+"/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/api/v1/devices/"+id+"/diagnostics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, resp["data"])

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/devices/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/api/v1/devices/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp["key"])
}

func TestCreateDeviceCannotConnect(t *testing.T) {
	s := newTestServer(t, testConfig())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	rec, resp := s.do(t, http.MethodPost, "/api/v1/devices", map[string]any{"host": "127.0.0.1", "port": port})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "cannot_connect", resp["key"])
	assert.Empty(t, s.manager.Entries())
}

func TestEntities(t *testing.T) {
	s := newTestServer(t, testConfig())
	id := s.register(t, "Living Room")
	base := "/api/v1/devices/" + id + "/entities"

	rec, resp := s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp["data"])

	rec, resp = s.do(t, http.MethodPut, base+"/default_shape", map[string]any{"value": "circle"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "circle", resp["data"].(map[string]any)["value"])

	rec, resp = s.do(t, http.MethodPut, base+"/default_shape", map[string]any{"value": "hexagon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_value", resp["key"])

	rec, resp = s.do(t, http.MethodPut, base+"/hostname", map[string]any{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "read_only", resp["key"])

	rec, resp = s.do(t, http.MethodGet, base+"/volume", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_entity", resp["key"])

	rec, _ = s.do(t, http.MethodPut, base+"/pixel_shift", map[string]any{"value": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := s.device.received("/set/settings")
	require.NotEmpty(t, sent)
	assert.Equal(t, true, sent[len(sent)-1].Body["pixelShift"])
}

func TestDiscoveryDisabled(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec, resp := s.do(t, http.MethodGet, "/api/v1/discovery", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "discovery_disabled", resp["key"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec, resp := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, metrics.StatusHealthy, data["status"])
	assert.Equal(t, "pma-tvoverlay", data["service"])
}

func TestUnknownRouteSuggestsEndpoints(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec, resp := s.do(t, http.MethodGet, "/api/v1/device", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	details := resp["details"].(map[string]any)
	assert.Contains(t, details["suggestions"], "/api/v1/devices")
}

func TestAuthEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true
	s := newTestServer(t, cfg)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/devices", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "automation",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(cfg.Auth.JWTSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
