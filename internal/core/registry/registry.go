// Package registry owns the set of active device registrations and the
// per-device runtime objects attached to them.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/frostdev-ops/pma-tvoverlay/internal/adapters/tvoverlay"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/idstore"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/observer"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/payload"
)

var (
	// ErrNotFound is returned when no registration matches
	ErrNotFound = errors.New("registration not found")
	// ErrAlreadyConfigured is returned for a second registration of the same
	// host:port
	ErrAlreadyConfigured = errors.New("already_configured")
)

// Entry is an active registration with its client, coordinator and id store
type Entry struct {
	Registration Registration
	// DeviceID is the device record id used by device selectors
	DeviceID    string
	Client      *tvoverlay.Client
	Coordinator *coordinator.Coordinator
	IDs         *idstore.Store

	mu           sync.RWMutex
	hotCorner    string
	defaultShape string

	subs observer.Group
}

// NewEntry wires an entry together. Local settings start from the
// registration, falling back to top_start and rounded.
func NewEntry(reg Registration, deviceID string, client *tvoverlay.Client, coord *coordinator.Coordinator, ids *idstore.Store) *Entry {
	e := &Entry{
		Registration: reg,
		DeviceID:     deviceID,
		Client:       client,
		Coordinator:  coord,
		IDs:          ids,
		hotCorner:    reg.HotCorner,
		defaultShape: reg.DefaultShape,
	}
	if e.hotCorner == "" {
		e.hotCorner = payload.CornerTopStart
	}
	if e.defaultShape == "" {
		e.defaultShape = payload.ShapeRounded
	}
	return e
}

// ID returns the registration id
func (e *Entry) ID() string { return e.Registration.ID }

// HotCorner returns the corner used when a notification names none
func (e *Entry) HotCorner() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hotCorner
}

// SetHotCorner updates the local hot corner
func (e *Entry) SetHotCorner(corner string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hotCorner = corner
}

// DefaultShape returns the shape used when a fixed notification names none
func (e *Entry) DefaultShape() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defaultShape
}

// SetDefaultShape updates the local default shape
func (e *Entry) SetDefaultShape(shape string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultShape = shape
}

// Defaults returns the payload defaults of this entry
func (e *Entry) Defaults() payload.Defaults {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return payload.Defaults{HotCorner: e.hotCorner, DefaultShape: e.defaultShape}
}

// Own ties a subscription to the entry's lifetime
func (e *Entry) Own(sub observer.Subscription) {
	e.subs.Add(sub)
}

// Close releases every subscription owned by the entry
func (e *Entry) Close() {
	e.subs.UnsubscribeAll()
}

// Registry is the set of active entries keyed by registration id
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// New creates an empty registry
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Add inserts e. It fails when the id or the host:port is already present.
func (r *Registry) Add(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.ID()]; ok {
		return ErrAlreadyConfigured
	}
	for _, other := range r.entries {
		if other.Registration.Address() == e.Registration.Address() {
			return ErrAlreadyConfigured
		}
	}
	r.entries[e.ID()] = e
	r.order = append(r.order, e.ID())
	return nil
}

// Replace swaps the entry with the same id for e, keeping its position
func (r *Registry) Replace(e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.ID()]; !ok {
		return ErrNotFound
	}
	for id, other := range r.entries {
		if id != e.ID() && other.Registration.Address() == e.Registration.Address() {
			return ErrAlreadyConfigured
		}
	}
	r.entries[e.ID()] = e
	return nil
}

// Remove deletes and returns the entry with the given id
func (r *Registry) Remove(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return e, true
}

// Get returns the entry with the given registration id
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// All returns the entries in insertion order
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Len returns the number of entries
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// FindByIdentifier matches a stable identifier verbatim
func (r *Registry) FindByIdentifier(identifier string) (*Entry, bool) {
	return r.find(func(e *Entry) bool { return e.Registration.Identifier == identifier })
}

// FindByDeviceID matches the device record id
func (r *Registry) FindByDeviceID(deviceID string) (*Entry, bool) {
	return r.find(func(e *Entry) bool { return e.DeviceID != "" && e.DeviceID == deviceID })
}

// FindByNameOrHost matches a display name or a bare host
func (r *Registry) FindByNameOrHost(value string) (*Entry, bool) {
	return r.find(func(e *Entry) bool {
		return e.Registration.Name == value || e.Registration.Host == value
	})
}

// FindByAddress matches host and port exactly
func (r *Registry) FindByAddress(host string, port int) (*Entry, bool) {
	return r.find(func(e *Entry) bool {
		return e.Registration.Host == host && e.Registration.Port == port
	})
}

// FindByClient returns the entry owning client
func (r *Registry) FindByClient(client *tvoverlay.Client) (*Entry, bool) {
	return r.find(func(e *Entry) bool { return e.Client == client })
}

func (r *Registry) find(match func(*Entry) bool) (*Entry, bool) {
	for _, e := range r.All() {
		if match(e) {
			return e, true
		}
	}
	return nil, false
}

// Identifiers returns the sorted identifiers of all entries
func (r *Registry) Identifiers() []string {
	entries := r.All()
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.Registration.Identifier)
	}
	sort.Strings(ids)
	return ids
}
