// Package identity is the purchaser collaborator. Authentication is out of
// scope; the orchestrator receives a buyer id explicitly with every request
// and reads the buyer record through this package.
package identity

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound reports that no buyer matched a lookup.
var ErrNotFound = errors.New("buyer not found")

// Buyer is a purchaser. CustomerRef is the direct-charge gateway's customer
// id, stored the first time the buyer subscribes to a recurring plan so
// later subscriptions reuse the same gateway customer.
type Buyer struct {
	ID          string
	Email       string
	CustomerRef string
}

// Repository is the buyer surface the orchestrator consumes.
type Repository interface {
	Get(ctx context.Context, id string) (Buyer, error)
	SetCustomerRef(ctx context.Context, id, ref string) error
}

// InMemoryRepository is a simple in-memory buyer repository.
type InMemoryRepository struct {
	mu     sync.RWMutex
	buyers map[string]Buyer
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{buyers: make(map[string]Buyer)}
}

// Add registers a buyer.
func (r *InMemoryRepository) Add(b Buyer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buyers[b.ID] = b
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (Buyer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buyers[id]
	if !ok {
		return Buyer{}, ErrNotFound
	}
	return b, nil
}

func (r *InMemoryRepository) SetCustomerRef(ctx context.Context, id, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buyers[id]
	if !ok {
		return ErrNotFound
	}
	b.CustomerRef = ref
	r.buyers[id] = b
	return nil
}
