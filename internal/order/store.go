package order

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that no order matched a lookup.
var ErrNotFound = errors.New("order not found")

// ErrStale reports that a conditional update found the order in a status
// other than the expected one. Two confirmation requests racing for the
// same order both pass the read-side status guard; the store's write path
// must make the loser observable, and this is how.
var ErrStale = errors.New("order status changed concurrently")

// Fields are the columns a Transition sets alongside the new status.
// Zero-valued fields are left untouched.
type Fields struct {
	ChargeRef    string
	CustomerRef  string
	ErrorMessage string
	ClearToken   bool
}

// Store is the durable order record contract.
//
// The FindRecent lookups are bounded by a recency window: orders created
// before now-within are never returned, so a stale or replayed confirmation
// cannot finalize an old order. Transition is a compare-and-swap on the
// expected prior status.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindRecentByToken(ctx context.Context, token string, st Status, within time.Duration) (*Order, error)
	FindRecentByChargeRef(ctx context.Context, ref string, st Status, within time.Duration) (*Order, error)
	Transition(ctx context.Context, id string, from, to Status, f Fields) error
	ListCreatedSince(ctx context.Context, since time.Time) ([]Order, error)
}
