// Package order defines the canonical order record, its status state
// machine, and the durable store contract the orchestrator persists it
// through. Adapters never touch an order; they return outcomes that the
// orchestrator applies here.
package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/checkout-orchestrator/internal/money"
)

// Status is the closed set of order lifecycle states.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
	// StatusGatewayConfirmed means the two-phase gateway has activated the
	// billing agreement but the order's own paid designation still awaits a
	// separate finalize call.
	StatusGatewayConfirmed Status = "gateway_confirmed"
)

// Gateway selects which payment gateway an order is processed against.
type Gateway string

const (
	GatewayStripe Gateway = "stripe"
	GatewayPayPal Gateway = "paypal"
)

// ParseGateway maps a caller-supplied gateway name onto the closed enum.
func ParseGateway(s string) (Gateway, error) {
	switch Gateway(s) {
	case GatewayStripe:
		return GatewayStripe, nil
	case GatewayPayPal:
		return GatewayPayPal, nil
	}
	return "", fmt.Errorf("unknown payment gateway %q", s)
}

// Order is the single source of truth for a payment outcome.
//
// PriceCents is snapshotted from the product at creation time and never
// recomputed, so a mid-flight price change cannot alter what the buyer is
// charged. Token carries the two-phase gateway's correlation token between
// the create and execute steps. ChargeRef is set only once a gateway has
// acknowledged the operation. ErrorMessage is set iff Status is failed.
type Order struct {
	ID           string
	ProductID    string
	BuyerID      string
	PriceCents   money.Cents
	Gateway      Gateway
	Token        string
	ChargeRef    string
	CustomerRef  string
	ErrorMessage string
	Status       Status
	CreatedAt    time.Time
}

// New builds a pending order with the price snapshotted from the product.
func New(productID, buyerID string, price money.Cents, gw Gateway) *Order {
	return &Order{
		ID:         uuid.NewString(),
		ProductID:  productID,
		BuyerID:    buyerID,
		PriceCents: price,
		Gateway:    gw,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
}

// transitions lists the legal moves. Everything is one-way: there is no
// route back to pending, and paid/failed are terminal.
var transitions = map[Status][]Status{
	StatusPending:          {StatusPaid, StatusFailed, StatusGatewayConfirmed},
	StatusGatewayConfirmed: {StatusPaid},
}

func (o *Order) transition(to Status) error {
	for _, next := range transitions[o.Status] {
		if next == to {
			o.Status = to
			return nil
		}
	}
	return fmt.Errorf("order %s: illegal transition %s -> %s", o.ID, o.Status, to)
}

// MarkPaid records a gateway-acknowledged payment. An empty chargeRef keeps
// a reference set by an earlier step (the recurring execute already stored
// the agreement id).
func (o *Order) MarkPaid(chargeRef string) error {
	if err := o.transition(StatusPaid); err != nil {
		return err
	}
	if chargeRef != "" {
		o.ChargeRef = chargeRef
	}
	return nil
}

// MarkFailed records a gateway-level failure with a caller-facing reason.
func (o *Order) MarkFailed(reason string) error {
	if err := o.transition(StatusFailed); err != nil {
		return err
	}
	o.ErrorMessage = reason
	return nil
}

// MarkGatewayConfirmed records an activated billing agreement awaiting the
// finalize step.
func (o *Order) MarkGatewayConfirmed(chargeRef string) error {
	if err := o.transition(StatusGatewayConfirmed); err != nil {
		return err
	}
	o.ChargeRef = chargeRef
	return nil
}
