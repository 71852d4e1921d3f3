// Package catalog is the product collaborator the checkout core reads
// from. Products are read-only here; catalog management lives elsewhere.
package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/yourorg/checkout-orchestrator/internal/money"
)

// ErrNotFound reports that no product matched a lookup.
var ErrNotFound = errors.New("product not found")

// Product is a purchasable item. A product carrying a recurring plan id for
// a gateway is sold as a subscription on that gateway; absence of both plan
// ids means a one-time purchase.
type Product struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	PriceCents   money.Cents `json:"price_cents"`
	StripePlanID string      `json:"stripe_plan_id,omitempty"`
	PayPalPlanID string      `json:"paypal_plan_id,omitempty"`
}

// Recurring reports whether the product is sold as a recurring plan on any
// gateway.
func (p Product) Recurring() bool {
	return p.StripePlanID != "" || p.PayPalPlanID != ""
}

// Repository is the read surface the orchestrator consumes.
type Repository interface {
	Get(ctx context.Context, id string) (Product, error)
	List(ctx context.Context) ([]Product, error)
}

// InMemoryRepository is a simple in-memory product repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{products: make(map[string]Product)}
}

// Add registers a product.
func (r *InMemoryRepository) Add(p Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
