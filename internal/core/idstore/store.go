// Package idstore keeps the set of fixed notification ids sent to each
// registered device, persisted across restarts.
package idstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/observer"
	"github.com/sirupsen/logrus"
)

const (
	// StorageKey prefixes the per-registration storage key
	StorageKey = "tvoverlay_ui_notification_ids"
	// StorageVersion is written alongside every saved set
	StorageVersion = 1
)

// KeyFor returns the storage key of a registration's id set
func KeyFor(entryID string) string {
	return fmt.Sprintf("%s_%s", StorageKey, entryID)
}

// Storage persists id sets. Load returns nil without error when nothing has
// been saved under key.
type Storage interface {
	Load(ctx context.Context, key string) ([]string, error)
	Save(ctx context.Context, key string, version int, ids []string) error
	Delete(ctx context.Context, key string) error
}

// Store is the ordered id set of one registration. Mutations are serialized
// and persisted before the in-memory set changes or observers run.
type Store struct {
	key     string
	storage Storage
	logger  *logrus.Logger

	// writeMu serializes read-modify-persist-notify sequences
	writeMu sync.Mutex
	// stateMu guards ids for readers
	stateMu sync.RWMutex
	ids     []string

	observers observer.List[[]string]
}

// New creates a store for a registration. Call Load to restore saved ids.
func New(entryID string, storage Storage, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		key:     KeyFor(entryID),
		storage: storage,
		logger:  logger,
		ids:     []string{},
	}
}

// Key returns the storage key
func (s *Store) Key() string { return s.key }

// Load restores the persisted set
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ids, err := s.storage.Load(ctx, s.key)
	if err != nil {
		return fmt.Errorf("failed to load notification ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}

	s.stateMu.Lock()
	s.ids = ids
	s.stateMu.Unlock()
	return nil
}

// IDs returns a copy of the current set in insertion order
func (s *Store) IDs() []string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Contains reports whether id is in the set
func (s *Store) Contains(id string) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return indexOf(s.ids, id) >= 0
}

// Add appends id if absent. The set is persisted and observers notified even
// when id was already present.
func (s *Store) Add(ctx context.Context, id string) error {
	return s.mutate(ctx, func(ids []string) []string {
		if indexOf(ids, id) >= 0 {
			return ids
		}
		return append(ids, id)
	})
}

// Remove deletes id if present. The set is persisted and observers notified
// even when id was absent.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, func(ids []string) []string {
		i := indexOf(ids, id)
		if i < 0 {
			return ids
		}
		return append(ids[:i], ids[i+1:]...)
	})
}

// Subscribe registers fn to receive the set after every successful mutation.
// Observers run synchronously and must not mutate the store.
func (s *Store) Subscribe(fn func(ids []string)) observer.Subscription {
	return s.observers.Subscribe(fn)
}

// Purge deletes the persisted set and drops all observers
func (s *Store) Purge(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.storage.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to delete notification ids: %w", err)
	}
	s.stateMu.Lock()
	s.ids = []string{}
	s.stateMu.Unlock()
	s.observers.Clear()
	return nil
}

func (s *Store) mutate(ctx context.Context, change func([]string) []string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := change(s.IDs())

	if err := s.storage.Save(ctx, s.key, StorageVersion, next); err != nil {
		s.logger.WithError(err).WithField("key", s.key).Error("Failed to persist notification ids")
		return fmt.Errorf("failed to persist notification ids: %w", err)
	}

	s.stateMu.Lock()
	s.ids = next
	s.stateMu.Unlock()

	s.observers.Notify(s.IDs())
	return nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
