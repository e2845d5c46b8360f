// Package observer provides typed callback lists with explicit subscription
// handles.
package observer

import (
	"sort"
	"sync"
)

// Subscription represents an active registration on a List
type Subscription interface {
	Unsubscribe() error
}

// List holds callbacks that are invoked synchronously by Notify
type List[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func(T)
}

// Subscribe adds fn and returns a handle that removes it again
func (l *List[T]) Subscribe(fn func(T)) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.subs == nil {
		l.subs = make(map[uint64]func(T))
	}
	l.nextID++
	id := l.nextID
	l.subs[id] = fn

	return &subscription[T]{list: l, id: id}
}

// Notify calls every subscriber with value in subscription order.
func (l *List[T]) Notify(value T) {
	l.mu.RLock()
	ids := make([]uint64, 0, len(l.subs))
	for id := range l.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.subs[id])
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(value)
	}
}

// Len returns the number of active subscribers
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// Clear removes every subscriber
func (l *List[T]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = nil
}

func (l *List[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, id)
}

type subscription[T any] struct {
	list *List[T]
	id   uint64
	once sync.Once
}

func (s *subscription[T]) Unsubscribe() error {
	s.once.Do(func() { s.list.remove(s.id) })
	return nil
}

// Group collects subscriptions owned by one component so they can be
// released together.
type Group struct {
	mu   sync.Mutex
	subs []Subscription
}

// Add tracks sub for a later UnsubscribeAll
func (g *Group) Add(sub Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, sub)
}

// UnsubscribeAll releases every tracked subscription
func (g *Group) UnsubscribeAll() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
