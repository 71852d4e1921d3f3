// Package store provides the order.Store implementations: an in-memory
// store for tests and dev mode, and a MySQL store for production.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/checkout-orchestrator/internal/order"
)

// Memory is an in-memory order store. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{orders: make(map[string]order.Order)}
}

func (m *Memory) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

// FindRecentByToken returns the newest order carrying the correlation token
// that is in the expected status and inside the recency window.
func (m *Memory) FindRecentByToken(ctx context.Context, token string, st order.Status, within time.Duration) (*order.Order, error) {
	if token == "" {
		return nil, order.ErrNotFound
	}
	return m.findRecent(st, within, func(o order.Order) bool { return o.Token == token })
}

func (m *Memory) FindRecentByChargeRef(ctx context.Context, ref string, st order.Status, within time.Duration) (*order.Order, error) {
	if ref == "" {
		return nil, order.ErrNotFound
	}
	return m.findRecent(st, within, func(o order.Order) bool { return o.ChargeRef == ref })
}

func (m *Memory) findRecent(st order.Status, within time.Duration, match func(order.Order) bool) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().Add(-within)
	var found *order.Order
	for _, o := range m.orders {
		if !match(o) || o.Status != st || o.CreatedAt.Before(cutoff) {
			continue
		}
		if found == nil || o.CreatedAt.After(found.CreatedAt) {
			o := o
			found = &o
		}
	}
	if found == nil {
		return nil, order.ErrNotFound
	}
	return found, nil
}

// Transition applies a conditional status update. The update is a no-op
// with order.ErrStale when the order is no longer in the expected prior
// status, which is what makes the loser of a confirmation race observable.
func (m *Memory) Transition(ctx context.Context, id string, from, to order.Status, f order.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from {
		return order.ErrStale
	}
	o.Status = to
	if f.ChargeRef != "" {
		o.ChargeRef = f.ChargeRef
	}
	if f.CustomerRef != "" {
		o.CustomerRef = f.CustomerRef
	}
	if f.ErrorMessage != "" {
		o.ErrorMessage = f.ErrorMessage
	}
	if f.ClearToken {
		o.Token = ""
	}
	m.orders[id] = o
	return nil
}

func (m *Memory) ListCreatedSince(ctx context.Context, since time.Time) ([]order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []order.Order
	for _, o := range m.orders {
		if !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
