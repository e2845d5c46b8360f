// Package services implements the notify, notify_fixed and clear_fixed
// service calls.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/payload"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/resolver"
	"github.com/sirupsen/logrus"
)

// Service names
const (
	ServiceNotify      = "notify"
	ServiceNotifyFixed = "notify_fixed"
	ServiceClearFixed  = "clear_fixed"
)

var (
	// ErrServicesNotRegistered is returned while no registration exists
	ErrServicesNotRegistered = errors.New("service not available")
	// ErrNotificationFailed is returned when the device rejects or cannot
	// receive a notification
	ErrNotificationFailed = errors.New("notification_failed")
	// ErrClearFailed is returned when a fixed notification could not be
	// cleared
	ErrClearFailed = errors.New("clear_failed")
	// ErrDeviceNotFound is returned when the address matches nothing
	ErrDeviceNotFound = resolver.ErrDeviceNotFound
)

// ValidationError is returned for malformed call data
type ValidationError = payload.ValidationError

// Result describes a successful call
type Result struct {
	Service    string `json:"service"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Identifier string `json:"identifier,omitempty"`
	ID         string `json:"id,omitempty"`
}

// Dispatcher runs service calls against resolved devices
type Dispatcher struct {
	resolver *resolver.Resolver
	logger   *logrus.Logger
	metrics  metrics.MetricsCollector
	enabled  atomic.Bool
}

// NewDispatcher creates a dispatcher. Services start deregistered.
func NewDispatcher(r *resolver.Resolver, logger *logrus.Logger, collector metrics.MetricsCollector) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Dispatcher{resolver: r, logger: logger, metrics: collector}
}

// Register makes the services callable. It is called when the first
// registration is set up and is a no-op afterwards.
func (d *Dispatcher) Register() {
	if d.enabled.CompareAndSwap(false, true) {
		d.logger.Info("TvOverlay services registered")
	}
}

// Deregister disables the services after the last registration is removed
func (d *Dispatcher) Deregister() {
	if d.enabled.CompareAndSwap(true, false) {
		d.logger.Info("TvOverlay services deregistered")
	}
}

// Registered reports whether the services are callable
func (d *Dispatcher) Registered() bool { return d.enabled.Load() }

// Notify sends a transient notification
func (d *Dispatcher) Notify(ctx context.Context, data map[string]any) (res *Result, err error) {
	defer func() { d.record(ServiceNotify, err) }()

	res, n, target, err := prepare(d, ctx, data, payload.ParseNotification)
	if err != nil {
		return nil, err
	}
	res.Service = ServiceNotify
	if n.ID != nil {
		res.ID = *n.ID
	}

	ok, sendErr := target.Client.SendNotification(ctx, payload.BuildNotification(n, target.Defaults()))
	if sendErr != nil || !ok {
		return nil, d.failed(ErrNotificationFailed, res, sendErr)
	}
	return res, nil
}

// NotifyFixed sends or updates a fixed notification. A visible notification
// on a registered device is added to its id store; visible=false removes it.
func (d *Dispatcher) NotifyFixed(ctx context.Context, data map[string]any) (res *Result, err error) {
	defer func() { d.record(ServiceNotifyFixed, err) }()

	res, n, target, err := prepare(d, ctx, data, payload.ParseFixedNotification)
	if err != nil {
		return nil, err
	}
	res.Service = ServiceNotifyFixed
	res.ID = n.ID

	ok, sendErr := target.Client.SendFixedNotification(ctx, payload.BuildFixedNotification(n, target.Defaults()))
	if sendErr != nil || !ok {
		return nil, d.failed(ErrNotificationFailed, res, sendErr)
	}

	if target.Registered() && target.Entry.IDs != nil {
		var storeErr error
		if n.Visible {
			storeErr = target.Entry.IDs.Add(ctx, n.ID)
		} else {
			storeErr = target.Entry.IDs.Remove(ctx, n.ID)
		}
		if storeErr != nil {
			d.logger.WithError(storeErr).WithField("id", n.ID).Warn("Failed to update notification id store")
		}
	}
	return res, nil
}

// ClearFixed hides a fixed notification by id
func (d *Dispatcher) ClearFixed(ctx context.Context, data map[string]any) (res *Result, err error) {
	defer func() { d.record(ServiceClearFixed, err) }()

	res, id, target, err := prepare(d, ctx, data, payload.ParseClearFixed)
	if err != nil {
		return nil, err
	}
	res.Service = ServiceClearFixed
	res.ID = id

	ok, sendErr := target.Client.ClearFixedNotification(ctx, id)
	if sendErr != nil || !ok {
		return nil, d.failed(ErrClearFailed, res, sendErr)
	}

	if target.Registered() && target.Entry.IDs != nil {
		if storeErr := target.Entry.IDs.Remove(ctx, id); storeErr != nil {
			d.logger.WithError(storeErr).WithField("id", id).Warn("Failed to update notification id store")
		}
	}
	return res, nil
}

// prepare runs the steps shared by every service before the send: the
// registration check, addressing, field validation and resolution.
func prepare[T any](d *Dispatcher, ctx context.Context, data map[string]any, parse func(map[string]any) (T, error)) (*Result, T, *resolver.Resolution, error) {
	var zero T
	if !d.Registered() {
		return nil, zero, nil, ErrServicesNotRegistered
	}

	data = payload.ApplyLegacyAliases(data)
	addr, err := resolver.ParseAddress(data)
	if err != nil {
		return nil, zero, nil, err
	}
	parsed, err := parse(data)
	if err != nil {
		return nil, zero, nil, err
	}

	target, err := d.resolver.Resolve(ctx, addr)
	if err != nil {
		d.logger.WithFields(logrus.Fields{
			"device_id": addr.DeviceID,
			"target":    addr.Target,
			"host":      addr.Host,
		}).Warn("No TvOverlay device matches the call")
		return nil, zero, nil, err
	}

	res := &Result{Host: target.Client.Host(), Port: target.Client.Port()}
	if target.Entry != nil {
		res.Identifier = target.Entry.Registration.Identifier
	}
	return res, parsed, target, nil
}

func (d *Dispatcher) failed(kind error, res *Result, cause error) error {
	fields := logrus.Fields{"host": res.Host, "port": res.Port, "service": res.Service}
	if cause != nil {
		d.logger.WithError(cause).WithFields(fields).Error("TvOverlay service call failed")
		return fmt.Errorf("%w: %v", kind, cause)
	}
	d.logger.WithFields(fields).Error("TvOverlay device rejected service call")
	return kind
}

func (d *Dispatcher) record(service string, err error) {
	d.metrics.RecordServiceCall(service, ResultLabel(err))
}

// ResultLabel classifies an error for metrics and API responses
func ResultLabel(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &verr):
		return verr.Key
	case errors.Is(err, ErrServicesNotRegistered):
		return "not_registered"
	case errors.Is(err, ErrDeviceNotFound):
		return "device_not_found"
	case errors.Is(err, ErrClearFailed):
		return "clear_failed"
	default:
		return "notification_failed"
	}
}
