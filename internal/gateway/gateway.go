// Package gateway defines the adapter contracts for the payment gateways
// and the common Outcome every adapter call normalizes its provider
// response into. Gateway-level errors are caught at the adapter boundary
// and converted here; they never escape as faults to the orchestrator.
package gateway

import (
	"context"
	"time"

	"github.com/yourorg/checkout-orchestrator/internal/money"
)

// InvalidOperationMessage is the fixed failure reason for gateway-level
// errors. The gateway's own error text is deliberately not surfaced to
// callers.
const InvalidOperationMessage = "Invalid Payment Operation"

// Outcome is the structured result of a single adapter call.
type Outcome struct {
	Success   bool
	Reference string // gateway-assigned charge / payment / agreement id
	PayerRef  string // gateway customer id for recurring billing, if any
	Reason    string // caller-facing failure reason, set when !Success
}

// Succeeded builds a successful outcome carrying the gateway reference.
func Succeeded(reference string) Outcome {
	return Outcome{Success: true, Reference: reference}
}

// Failed builds a failed outcome with the fixed caller-facing reason.
func Failed() Outcome {
	return Outcome{Reason: InvalidOperationMessage}
}

// PayRequest describes a direct-charge submission. PlanID selects the
// recurring flow when non-empty; CustomerRef and Email feed the gateway's
// customer lookup in that case.
type PayRequest struct {
	AmountCents money.Cents
	Description string
	CardToken   string
	PlanID      string
	CustomerRef string
	Email       string
}

// Charger is a gateway that completes a purchase in a single server-side
// call sequence. Exactly one charge request is issued per Pay; failures are
// never retried here, they surface synchronously in the outcome.
type Charger interface {
	Name() string
	Pay(ctx context.Context, req PayRequest) Outcome
}

// TwoPhase is a gateway requiring a server-side create step, client-side
// user confirmation, and a server-side execute step. The recurring variant
// trades a billing agreement instead of a payment.
type TwoPhase interface {
	Name() string
	CreatePayment(ctx context.Context, name string, price money.Cents) Outcome
	ExecutePayment(ctx context.Context, paymentID, payerID string) Outcome
	CreateAgreement(ctx context.Context, name, planID string, start time.Time) Outcome
	ExecuteAgreement(ctx context.Context, token string) Outcome
}
