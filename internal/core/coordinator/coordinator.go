// Package coordinator mirrors each device's remote configuration by polling
// GET /get and tracks whether the device is reachable.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/adapters/tvoverlay"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/observer"
	"github.com/sirupsen/logrus"
)

// ScanInterval is the default time between polls
const ScanInterval = 30 * time.Second

// ErrNoData is reported when the device answered without a usable config
var ErrNoData = errors.New("failed to fetch config from device")

// Fetcher reads the raw device configuration
type Fetcher interface {
	FetchConfig(ctx context.Context) (map[string]any, error)
}

// Snapshot is the last successfully fetched device state
type Snapshot struct {
	Overlay       map[string]any `json:"overlay"`
	Settings      map[string]any `json:"settings"`
	Notifications map[string]any `json:"notifications"`
	Status        map[string]any `json:"status"`
}

// State is a consistent view of a coordinator
type State struct {
	Name        string     `json:"name"`
	Available   bool       `json:"available"`
	Version     string     `json:"version,omitempty"`
	Data        *Snapshot  `json:"data,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	LastUpdate  *time.Time `json:"last_update,omitempty"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
}

// UpdateFailedError wraps the cause of a failed refresh
type UpdateFailedError struct {
	Err error
}

func (e *UpdateFailedError) Error() string {
	if tvoverlay.IsConnectionError(e.Err) {
		return fmt.Sprintf("Connection error: %v", e.Err)
	}
	return fmt.Sprintf("Error fetching data: %v", e.Err)
}

func (e *UpdateFailedError) Unwrap() error { return e.Err }

// Coordinator polls one device. It starts unavailable with no data.
type Coordinator struct {
	name    string
	fetcher Fetcher
	logger  *logrus.Logger
	metrics metrics.MetricsCollector

	// refreshMu serializes scheduled polls and on-demand refreshes
	refreshMu sync.Mutex

	mu          sync.RWMutex
	available   bool
	version     string
	data        *Snapshot
	lastErr     error
	lastUpdate  time.Time
	lastAttempt time.Time

	listeners observer.List[State]
}

// New creates a coordinator for the named device
func New(name string, fetcher Fetcher, logger *logrus.Logger, collector metrics.MetricsCollector) *Coordinator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Coordinator{
		name:    name,
		fetcher: fetcher,
		logger:  logger,
		metrics: collector,
	}
}

// Name returns the device name the coordinator was created for
func (c *Coordinator) Name() string { return c.name }

// Available reports whether the last refresh succeeded
func (c *Coordinator) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// Version returns the last device version seen, or ""
func (c *Coordinator) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Data returns the last good snapshot, or nil before the first success.
// The snapshot is replaced, never modified, so callers may read it freely.
func (c *Coordinator) Data() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// LastError returns the cause of the most recent failed refresh, cleared on
// success.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// State returns a consistent copy of the coordinator state
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	s := State{
		Name:      c.name,
		Available: c.available,
		Version:   c.version,
		Data:      c.data,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if !c.lastUpdate.IsZero() {
		t := c.lastUpdate
		s.LastUpdate = &t
	}
	if !c.lastAttempt.IsZero() {
		t := c.lastAttempt
		s.LastAttempt = &t
	}
	return s
}

// Subscribe registers fn to receive the state after every refresh
func (c *Coordinator) Subscribe(fn func(State)) observer.Subscription {
	return c.listeners.Subscribe(fn)
}

// Refresh fetches the device config once. On failure the device is marked
// unavailable, the previous snapshot is kept and an *UpdateFailedError is
// returned.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := time.Now()
	raw, err := c.fetcher.FetchConfig(ctx)
	if err == nil && raw == nil {
		err = ErrNoData
	}

	c.mu.Lock()
	c.lastAttempt = time.Now()
	if err != nil {
		c.available = false
		c.lastErr = &UpdateFailedError{Err: err}
	} else {
		cfg := tvoverlay.ParseDeviceConfig(raw)
		if v, ok := cfg.Status["version"]; ok && v != nil {
			c.version = fmt.Sprint(v)
		}
		c.data = &Snapshot{
			Overlay:       cfg.Overlay,
			Settings:      cfg.Settings,
			Notifications: cfg.Notifications,
			Status:        cfg.Status,
		}
		c.available = true
		c.lastErr = nil
		c.lastUpdate = c.lastAttempt
	}
	state := c.stateLocked()
	refreshErr := c.lastErr
	c.mu.Unlock()

	c.metrics.RecordPoll(c.name, refreshErr == nil, time.Since(start))
	c.metrics.SetDeviceAvailable(c.name, state.Available)

	if refreshErr != nil {
		c.logger.WithError(refreshErr).WithField("device", c.name).Warn("TvOverlay update failed")
	} else {
		c.logger.WithFields(logrus.Fields{
			"device":  c.name,
			"version": state.Version,
		}).Debug("Coordinator data updated")
	}

	c.listeners.Notify(state)
	return refreshErr
}

// RequestRefresh runs a refresh on behalf of a mutating call. Failures are
// logged and folded into the state, not returned.
func (c *Coordinator) RequestRefresh(ctx context.Context) {
	_ = c.Refresh(ctx)
}
