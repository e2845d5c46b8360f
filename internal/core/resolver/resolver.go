// Package resolver picks the device client a service call is addressed to.
package resolver

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/frostdev-ops/pma-tvoverlay/internal/adapters/tvoverlay"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/payload"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/sirupsen/logrus"
)

// ErrDeviceNotFound is returned when the address matches nothing
var ErrDeviceNotFound = errors.New("device_not_found")

// Address holds the addressing fields of a service call. Exactly one must be
// set.
type Address struct {
	DeviceID string `json:"device_id,omitempty"`
	Target   string `json:"target,omitempty"`
	Host     string `json:"host,omitempty"`
}

// ParseAddress reads device_id, target and host from call data and validates
// that exactly one of them is given.
func ParseAddress(data map[string]any) (Address, error) {
	var addr Address
	fields := map[string]*string{
		payload.FieldDeviceID: &addr.DeviceID,
		payload.FieldTarget:   &addr.Target,
		payload.FieldHost:     &addr.Host,
	}
	for field, dst := range fields {
		v, err := payload.String(data, field)
		if err != nil {
			return Address{}, err
		}
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	return addr, addr.Validate()
}

// Validate fails unless exactly one addressing field is non-blank
func (a Address) Validate() error {
	n := 0
	for _, v := range []string{a.DeviceID, a.Target, a.Host} {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	switch {
	case n == 0:
		return &payload.ValidationError{
			Key:    "target_required",
			Reason: "one of device_id, target or host is required",
		}
	case n > 1:
		return &payload.ValidationError{
			Key:    "multiple_targets",
			Reason: "only one of device_id, target or host may be given",
		}
	}
	return nil
}

// DeviceRegistry maps device record ids to registration identifiers
type DeviceRegistry interface {
	IdentifierForDevice(ctx context.Context, deviceID string) (string, bool, error)
}

// Resolution is the client chosen for a call. Entry is nil for ad hoc
// clients built from a raw host.
type Resolution struct {
	Client *tvoverlay.Client
	Entry  *registry.Entry
}

// Registered reports whether the client belongs to a registration
func (r *Resolution) Registered() bool { return r.Entry != nil }

// Defaults returns the payload defaults of the resolved entry, or the global
// defaults for ad hoc clients.
func (r *Resolution) Defaults() payload.Defaults {
	if r.Entry != nil {
		return r.Entry.Defaults()
	}
	return payload.Defaults{HotCorner: payload.CornerTopStart, DefaultShape: payload.ShapeRounded}
}

// Resolver resolves addresses against the registry
type Resolver struct {
	registry    *registry.Registry
	devices     DeviceRegistry
	defaultPort int
	logger      *logrus.Logger
}

// New creates a resolver. devices may be nil, in which case device ids are
// matched against the in-memory device ids only.
func New(reg *registry.Registry, devices DeviceRegistry, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{
		registry:    reg,
		devices:     devices,
		defaultPort: tvoverlay.DefaultPort,
		logger:      logger,
	}
}

// Resolve returns the client for addr. The first matching rule wins: target
// identifier, then device id (device record, identifier, name or host), then
// raw host, which falls back to an unregistered client.
func (r *Resolver) Resolve(ctx context.Context, addr Address) (*Resolution, error) {
	if addr.Target != "" {
		if e, ok := r.registry.FindByIdentifier(addr.Target); ok {
			return entryResolution(e), nil
		}
	}

	if addr.DeviceID != "" {
		if e, ok := r.resolveDeviceID(ctx, addr.DeviceID); ok {
			return entryResolution(e), nil
		}
	}

	if addr.Host != "" {
		host, port := ParseHostPort(addr.Host, r.defaultPort)
		if e, ok := r.registry.FindByAddress(host, port); ok {
			return entryResolution(e), nil
		}
		r.logger.WithFields(logrus.Fields{"host": host, "port": port}).Debug("Using unregistered TvOverlay device")
		return &Resolution{Client: tvoverlay.NewClient(host, port, r.logger)}, nil
	}

	return nil, ErrDeviceNotFound
}

func (r *Resolver) resolveDeviceID(ctx context.Context, deviceID string) (*registry.Entry, bool) {
	if e, ok := r.registry.FindByDeviceID(deviceID); ok {
		return e, true
	}
	if r.devices != nil {
		identifier, found, err := r.devices.IdentifierForDevice(ctx, deviceID)
		if err != nil {
			r.logger.WithError(err).WithField("device_id", deviceID).Warn("Device registry lookup failed")
		} else if found {
			if e, ok := r.registry.FindByIdentifier(identifier); ok {
				return e, true
			}
		}
	}
	if e, ok := r.registry.FindByIdentifier(deviceID); ok {
		return e, true
	}
	return r.registry.FindByNameOrHost(deviceID)
}

func entryResolution(e *registry.Entry) *Resolution {
	return &Resolution{Client: e.Client, Entry: e}
}

// ParseHostPort splits host[:port] on the last colon. When the port is
// missing or does not parse, the whole string is the host and defaultPort
// is used.
func ParseHostPort(value string, defaultPort int) (string, int) {
	i := strings.LastIndex(value, ":")
	if i < 0 {
		return value, defaultPort
	}
	port, err := strconv.Atoi(value[i+1:])
	if err != nil {
		return value, defaultPort
	}
	return value[:i], port
}
