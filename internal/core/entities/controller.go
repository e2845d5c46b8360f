package entities

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/payload"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownEntity is returned for keys not in Descriptions
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrReadOnly is returned when setting a sensor
	ErrReadOnly = errors.New("entity is read-only")
	// ErrSetFailed is returned when the device did not accept a value
	ErrSetFailed = errors.New("failed to set value")
)

// ValueError reports a value outside what an entity accepts
type ValueError struct {
	Key    string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Key, e.Reason)
}

// State is the current view of one entity of a registration
type State struct {
	UniqueID   string         `json:"unique_id"`
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	Icon       string         `json:"icon,omitempty"`
	Category   string         `json:"category,omitempty"`
	Available  bool           `json:"available"`
	Value      any            `json:"value"`
	Unit       string         `json:"unit,omitempty"`
	Min        *float64       `json:"min,omitempty"`
	Max        *float64       `json:"max,omitempty"`
	Step       *float64       `json:"step,omitempty"`
	Options    []string       `json:"options,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// LocalSettingsStore persists the per-registration hot corner and default
// shape
type LocalSettingsStore interface {
	UpdateLocalSettings(ctx context.Context, id, hotCorner, defaultShape string) error
}

// IPLookup resolves a host name to addresses
type IPLookup func(ctx context.Context, network, host string) ([]net.IP, error)

// Controller reads and writes entity values of registry entries
type Controller struct {
	settings LocalSettingsStore
	lookupIP IPLookup
	logger   *logrus.Logger
}

// NewController creates a controller. settings may be nil, in which case
// local selections are kept in memory only.
func NewController(settings LocalSettingsStore, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Controller{
		settings: settings,
		lookupIP: net.DefaultResolver.LookupIP,
		logger:   logger,
	}
}

// SetIPLookup replaces the resolver used by the ip_address sensor
func (c *Controller) SetIPLookup(lookup IPLookup) {
	c.lookupIP = lookup
}

// List returns every entity of e
func (c *Controller) List(ctx context.Context, e *registry.Entry) []State {
	states := make([]State, 0, len(Descriptions))
	for _, d := range Descriptions {
		states = append(states, c.state(ctx, e, d))
	}
	return states
}

// Get returns one entity of e
func (c *Controller) Get(ctx context.Context, e *registry.Entry, key string) (State, error) {
	d, ok := Lookup(key)
	if !ok {
		return State{}, ErrUnknownEntity
	}
	return c.state(ctx, e, d), nil
}

func (c *Controller) state(ctx context.Context, e *registry.Entry, d Description) State {
	s := State{
		UniqueID:  e.ID() + "_" + d.Key,
		Key:       d.Key,
		Name:      d.Name,
		Kind:      d.Kind,
		Icon:      d.Icon,
		Category:  d.Category,
		Available: true,
		Unit:      d.Unit,
		Options:   d.Options,
	}
	if d.Kind == KindNumber {
		s.Min, s.Max, s.Step = &d.Min, &d.Max, &d.Step
	}
	if d.coordinated() && e.Coordinator != nil {
		s.Available = e.Coordinator.Available()
	}

	var data *coordinator.Snapshot
	if e.Coordinator != nil {
		data = e.Coordinator.Data()
	}

	switch d.Kind {
	case KindNumber:
		if v, ok := sectionValue(data, d); ok {
			if f, ok := toFloat(v); ok {
				s.Value = f
			}
		}
	case KindSwitch:
		if v, ok := sectionValue(data, d); ok {
			s.Value = switchIsOn(d, v)
		}
	case KindSelect:
		s.Value = c.selectValue(e, d, data)
	case KindSensor:
		s.Value, s.Attributes = c.sensorValue(ctx, e, d)
	case KindBinarySensor:
		s.Value = e.Coordinator != nil && e.Coordinator.Available()
	}
	return s
}

func sectionValue(data *coordinator.Snapshot, d Description) (any, bool) {
	if data == nil {
		return nil, false
	}
	var section map[string]any
	switch d.Section {
	case SectionOverlay:
		section = data.Overlay
	case SectionNotifications:
		section = data.Notifications
	case SectionSettings:
		section = data.Settings
	}
	v, ok := section[d.APIKey]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// switchIsOn applies truthiness to a device value. The clock switch is on
// whenever the clock is visible at all.
func switchIsOn(d Description, v any) bool {
	if d.Key == KeyDisplayClock {
		f, ok := toFloat(v)
		return ok && f > 0
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	default:
		f, ok := toFloat(v)
		return ok && f != 0
	}
}

func (c *Controller) selectValue(e *registry.Entry, d Description, data *coordinator.Snapshot) string {
	if d.Key == KeyDefaultShape {
		return e.DefaultShape()
	}
	if data == nil {
		return e.HotCorner()
	}
	corner, _ := data.Overlay[d.APIKey].(string)
	if !contains(payload.ValidCorners, corner) {
		return payload.CornerTopStart
	}
	return corner
}

func (c *Controller) sensorValue(ctx context.Context, e *registry.Entry, d Description) (any, map[string]any) {
	host, port := e.Registration.Host, e.Registration.Port
	if e.Client != nil {
		host, port = e.Client.Host(), e.Client.Port()
	}

	switch d.Key {
	case KeyActiveNotificationIDs:
		ids := []string{}
		if e.IDs != nil {
			ids = e.IDs.IDs()
		}
		value := "None"
		if len(ids) > 0 {
			value = strings.Join(ids, ", ")
		}
		return value, map[string]any{"notification_ids": ids, "count": len(ids)}
	case KeyHostname:
		return fmt.Sprintf("%s:%d", host, port), nil
	case KeyIPAddress:
		return fmt.Sprintf("%s:%d", c.resolveIP(ctx, host), port), nil
	}
	return nil, nil
}

// resolveIP returns the first IPv4 address of host, or host itself when it
// does not resolve
func (c *Controller) resolveIP(ctx context.Context, host string) string {
	ips, err := c.lookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		return host
	}
	return ips[0].String()
}

// Set writes value to the entity. Device-backed entities call the matching
// set endpoint and request a coordinator refresh on success. A device
// failure is logged and returned as ErrSetFailed.
func (c *Controller) Set(ctx context.Context, e *registry.Entry, key string, value any) error {
	d, ok := Lookup(key)
	if !ok {
		return ErrUnknownEntity
	}

	switch d.Kind {
	case KindNumber:
		return c.setNumber(ctx, e, d, value)
	case KindSwitch:
		return c.setSwitch(ctx, e, d, value)
	case KindSelect:
		return c.setSelect(ctx, e, d, value)
	default:
		return ErrReadOnly
	}
}

func (c *Controller) setNumber(ctx context.Context, e *registry.Entry, d Description, value any) error {
	f, ok := toFloat(value)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return &ValueError{Key: d.Key, Reason: "expected a number"}
	}
	if f < d.Min || f > d.Max {
		return &ValueError{Key: d.Key, Reason: fmt.Sprintf("must be between %g and %g", d.Min, d.Max)}
	}
	return c.push(ctx, e, d, int(f), value)
}

func (c *Controller) setSwitch(ctx context.Context, e *registry.Entry, d Description, value any) error {
	on, err := payload.Bool(map[string]any{d.Key: value}, d.Key)
	if err != nil || on == nil {
		return &ValueError{Key: d.Key, Reason: "expected a boolean"}
	}
	var wire any = *on
	if d.Key == KeyDisplayClock {
		if *on {
			wire = clockOn
		} else {
			wire = clockOff
		}
	}
	return c.push(ctx, e, d, wire, *on)
}

func (c *Controller) setSelect(ctx context.Context, e *registry.Entry, d Description, value any) error {
	option, _ := value.(string)
	if !contains(d.Options, option) {
		return &ValueError{Key: d.Key, Reason: "must be one of " + strings.Join(d.Options, ", ")}
	}

	if d.Key == KeyDefaultShape {
		e.SetDefaultShape(option)
		c.persistLocal(ctx, e)
		return nil
	}

	if err := c.push(ctx, e, d, option, option); err != nil {
		return err
	}
	e.SetHotCorner(option)
	c.persistLocal(ctx, e)
	return nil
}

// push sends {APIKey: wire} to the entity's section endpoint
func (c *Controller) push(ctx context.Context, e *registry.Entry, d Description, wire any, requested any) error {
	if e.Client == nil {
		return ErrSetFailed
	}
	data := map[string]any{d.APIKey: wire}

	var ok bool
	var err error
	switch d.Section {
	case SectionNotifications:
		ok, err = e.Client.SetNotifications(ctx, data)
	case SectionSettings:
		ok, err = e.Client.SetSettings(ctx, data)
	default:
		ok, err = e.Client.SetOverlay(ctx, data)
	}

	if err != nil || !ok {
		entry := c.logger.WithFields(logrus.Fields{
			"device": e.Registration.Name,
			"entity": d.Key,
			"value":  requested,
		})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Error("Failed to set entity value")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSetFailed, err)
		}
		return ErrSetFailed
	}

	if e.Coordinator != nil {
		e.Coordinator.RequestRefresh(ctx)
	}
	return nil
}

func (c *Controller) persistLocal(ctx context.Context, e *registry.Entry) {
	if c.settings == nil {
		return
	}
	d := e.Defaults()
	if err := c.settings.UpdateLocalSettings(ctx, e.ID(), d.HotCorner, d.DefaultShape); err != nil {
		c.logger.WithError(err).WithField("device", e.Registration.Name).Warn("Failed to persist local settings")
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
