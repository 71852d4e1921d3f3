// Package orchestrator drives the checkout flows end to end: validate the
// submission, call the right gateway adapter, apply the outcome to the
// order record, and derive the caller-facing result.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/yourorg/checkout-orchestrator/internal/catalog"
	"github.com/yourorg/checkout-orchestrator/internal/gateway"
	"github.com/yourorg/checkout-orchestrator/internal/identity"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator/circuitbreaker"
	"github.com/yourorg/checkout-orchestrator/internal/order"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
)

// Caller-facing result strings for Submit. The failure string is
// deliberately generic; specific reasons surface only through a failed
// order's recorded error message.
const (
	SuccessMessage = "Order Performed Successfully!"
	FailureMessage = "Oops something went wrong. Please call the administrator"
)

// ErrUnprocessable reports that a two-phase request cannot be processed:
// validation failed, no order matched inside the recency window, the status
// guard lost a race, or the gateway refused the operation. Callers get no
// finer detail.
var ErrUnprocessable = errors.New("payment request cannot be processed")

// DefaultRecencyWindow bounds how old an order may be and still be
// completed by a confirmation request.
const DefaultRecencyWindow = time.Minute

// agreementStartDelay pushes a new billing agreement's first charge past
// the approval round-trip.
const agreementStartDelay = time.Minute

// Submission is one checkout request from a buyer.
type Submission struct {
	ProductID    string
	BuyerID      string
	Gateway      string
	PaymentToken string
}

// Orchestrator coordinates the order store, the catalog and buyer
// collaborators, the gateway adapters, and the submission policy.
type Orchestrator struct {
	store    order.Store
	products catalog.Repository
	buyers   identity.Repository
	charger  gateway.Charger
	twoPhase gateway.TwoPhase
	enforcer *policy.Enforcer
	breaker  *circuitbreaker.CircuitBreaker
	window   time.Duration
}

// New wires an orchestrator. All collaborators are required; window falls
// back to DefaultRecencyWindow when non-positive.
func New(
	store order.Store,
	products catalog.Repository,
	buyers identity.Repository,
	charger gateway.Charger,
	twoPhase gateway.TwoPhase,
	enforcer *policy.Enforcer,
	breaker *circuitbreaker.CircuitBreaker,
	window time.Duration,
) *Orchestrator {
	if store == nil {
		panic("order store cannot be nil")
	}
	if products == nil {
		panic("catalog repository cannot be nil")
	}
	if buyers == nil {
		panic("buyer repository cannot be nil")
	}
	if charger == nil {
		panic("charger gateway cannot be nil")
	}
	if twoPhase == nil {
		panic("two-phase gateway cannot be nil")
	}
	if enforcer == nil {
		panic("policy enforcer cannot be nil")
	}
	if breaker == nil {
		panic("circuit breaker cannot be nil")
	}
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	return &Orchestrator{
		store:    store,
		products: products,
		buyers:   buyers,
		charger:  charger,
		twoPhase: twoPhase,
		enforcer: enforcer,
		breaker:  breaker,
		window:   window,
	}
}

// Submit processes one checkout submission and returns the caller-facing
// result string. It never returns an error; every failure mode collapses
// into the result derivation.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) string {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Orchestrator.Submit")
	defer span.End()

	product, productErr := o.products.Get(ctx, sub.ProductID)

	params := map[string]any{
		"product_id":    sub.ProductID,
		"buyer_id":      sub.BuyerID,
		"gateway":       sub.Gateway,
		"payment_token": sub.PaymentToken,
		"amount_cents":  int64(product.PriceCents),
	}
	if violated := o.enforcer.Evaluate(params); violated != "" {
		log.Printf("orchestrator: submission rejected by rule %s", violated)
		return FailureMessage
	}
	if productErr != nil {
		log.Printf("orchestrator: product %s: %v", sub.ProductID, productErr)
		return FailureMessage
	}

	gw, err := order.ParseGateway(sub.Gateway)
	if err != nil {
		return FailureMessage
	}
	switch gw {
	case order.GatewayStripe:
		return o.submitDirect(ctx, product, sub)
	case order.GatewayPayPal:
		return o.finalizeTwoPhase(ctx, sub.PaymentToken)
	}
	return FailureMessage
}

// submitDirect runs the single-call charge flow. The order record is
// persisted exactly once, after the gateway outcome is known, mirroring a
// single atomic save of the final state.
func (o *Orchestrator) submitDirect(ctx context.Context, product catalog.Product, sub Submission) string {
	buyer, err := o.buyers.Get(ctx, sub.BuyerID)
	if err != nil {
		log.Printf("orchestrator: buyer %s: %v", sub.BuyerID, err)
		return FailureMessage
	}

	ord := order.New(product.ID, buyer.ID, product.PriceCents, order.GatewayStripe)
	name := o.charger.Name()

	var out gateway.Outcome
	if !o.breaker.AllowRequest(name) {
		circuitOpenRejections.WithLabelValues(name).Inc()
		out = gateway.Failed()
	} else {
		timer := prometheus.NewTimer(gatewayCallDuration.WithLabelValues(name, "pay"))
		out = o.charger.Pay(ctx, gateway.PayRequest{
			AmountCents: product.PriceCents,
			Description: product.Name,
			CardToken:   sub.PaymentToken,
			PlanID:      product.StripePlanID,
			CustomerRef: buyer.CustomerRef,
			Email:       buyer.Email,
		})
		timer.ObserveDuration()
		if out.Success {
			o.breaker.RecordSuccess(name)
		} else {
			o.breaker.RecordFailure(name)
		}
	}

	if out.Success {
		if err := ord.MarkPaid(out.Reference); err != nil {
			log.Printf("orchestrator: %v", err)
			return FailureMessage
		}
		if out.PayerRef != "" {
			ord.CustomerRef = out.PayerRef
			if buyer.CustomerRef == "" {
				if err := o.buyers.SetCustomerRef(ctx, buyer.ID, out.PayerRef); err != nil {
					log.Printf("orchestrator: store customer ref for buyer %s: %v", buyer.ID, err)
				}
			}
		}
	} else {
		if err := ord.MarkFailed(out.Reason); err != nil {
			log.Printf("orchestrator: %v", err)
			return FailureMessage
		}
	}

	if err := o.store.Create(ctx, ord); err != nil {
		log.Printf("orchestrator: persist order %s: %v", ord.ID, err)
		if out.Success {
			persistenceFailures.Inc()
		}
		return FailureMessage
	}
	ordersTotal.WithLabelValues(string(ord.Gateway), string(ord.Status)).Inc()
	return deriveMessage(ord)
}

// finalizeTwoPhase promotes an activated billing agreement's order to paid.
// The lookup is bounded by the recency window and guarded by the status
// CAS, so a stale or duplicate confirmation cannot finalize anything.
func (o *Orchestrator) finalizeTwoPhase(ctx context.Context, token string) string {
	ord, err := o.store.FindRecentByChargeRef(ctx, token, order.StatusGatewayConfirmed, o.window)
	if err != nil {
		log.Printf("orchestrator: finalize lookup for token: %v", err)
		return FailureMessage
	}
	err = o.store.Transition(ctx, ord.ID, order.StatusGatewayConfirmed, order.StatusPaid, order.Fields{ClearToken: true})
	if err != nil {
		log.Printf("orchestrator: finalize order %s: %v", ord.ID, err)
		return FailureMessage
	}
	ordersTotal.WithLabelValues(string(ord.Gateway), string(order.StatusPaid)).Inc()
	return SuccessMessage
}

// CreatePayment opens a two-phase one-time payment and persists the
// pending order carrying the gateway's payment reference as its
// correlation token. It returns the reference the client needs for buyer
// approval.
func (o *Orchestrator) CreatePayment(ctx context.Context, buyerID, productID string) (string, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Orchestrator.CreatePayment")
	defer span.End()

	product, err := o.products.Get(ctx, productID)
	if err != nil {
		log.Printf("orchestrator: product %s: %v", productID, err)
		return "", ErrUnprocessable
	}
	buyer, err := o.buyers.Get(ctx, buyerID)
	if err != nil {
		log.Printf("orchestrator: buyer %s: %v", buyerID, err)
		return "", ErrUnprocessable
	}

	out, ok := o.callTwoPhase(ctx, "create_payment", func(c context.Context) gateway.Outcome {
		return o.twoPhase.CreatePayment(c, product.Name, product.PriceCents)
	})
	if !ok {
		return "", ErrUnprocessable
	}

	ord := order.New(product.ID, buyer.ID, product.PriceCents, order.GatewayPayPal)
	ord.Token = out.Reference
	if err := o.store.Create(ctx, ord); err != nil {
		log.Printf("orchestrator: persist order %s: %v", ord.ID, err)
		persistenceFailures.Inc()
		return "", ErrUnprocessable
	}
	return out.Reference, nil
}

// ExecutePayment completes an approved two-phase payment. The pending
// order is located by its correlation token inside the recency window and
// promoted to paid; a gateway refusal fails it with the fixed reason.
func (o *Orchestrator) ExecutePayment(ctx context.Context, paymentID, payerID string) error {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Orchestrator.ExecutePayment")
	defer span.End()

	ord, err := o.store.FindRecentByToken(ctx, paymentID, order.StatusPending, o.window)
	if err != nil {
		log.Printf("orchestrator: execute payment lookup: %v", err)
		return ErrUnprocessable
	}

	out, ok := o.callTwoPhase(ctx, "execute_payment", func(c context.Context) gateway.Outcome {
		return o.twoPhase.ExecutePayment(c, paymentID, payerID)
	})
	if !ok {
		o.failPending(ctx, ord)
		return ErrUnprocessable
	}

	err = o.store.Transition(ctx, ord.ID, order.StatusPending, order.StatusPaid, order.Fields{
		ChargeRef:  out.Reference,
		ClearToken: true,
	})
	if err != nil {
		log.Printf("orchestrator: promote order %s: %v", ord.ID, err)
		persistenceFailures.Inc()
		return ErrUnprocessable
	}
	ordersTotal.WithLabelValues(string(ord.Gateway), string(order.StatusPaid)).Inc()
	return nil
}

// CreateSubscription opens a two-phase billing agreement for a plan
// product and persists the pending order carrying the approval token.
func (o *Orchestrator) CreateSubscription(ctx context.Context, buyerID, productID string) (string, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Orchestrator.CreateSubscription")
	defer span.End()

	product, err := o.products.Get(ctx, productID)
	if err != nil {
		log.Printf("orchestrator: product %s: %v", productID, err)
		return "", ErrUnprocessable
	}
	if product.PayPalPlanID == "" {
		log.Printf("orchestrator: product %s has no recurring plan", productID)
		return "", ErrUnprocessable
	}
	buyer, err := o.buyers.Get(ctx, buyerID)
	if err != nil {
		log.Printf("orchestrator: buyer %s: %v", buyerID, err)
		return "", ErrUnprocessable
	}

	start := time.Now().Add(agreementStartDelay)
	out, ok := o.callTwoPhase(ctx, "create_agreement", func(c context.Context) gateway.Outcome {
		return o.twoPhase.CreateAgreement(c, product.Name, product.PayPalPlanID, start)
	})
	if !ok {
		return "", ErrUnprocessable
	}

	ord := order.New(product.ID, buyer.ID, product.PriceCents, order.GatewayPayPal)
	ord.Token = out.Reference
	if err := o.store.Create(ctx, ord); err != nil {
		log.Printf("orchestrator: persist order %s: %v", ord.ID, err)
		persistenceFailures.Inc()
		return "", ErrUnprocessable
	}
	return out.Reference, nil
}

// ExecuteSubscription activates an approved billing agreement. The order
// moves to gateway_confirmed with the agreement id as its charge
// reference; the correlation token survives until the finalize step clears
// it. It returns the agreement id.
func (o *Orchestrator) ExecuteSubscription(ctx context.Context, token string) (string, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Orchestrator.ExecuteSubscription")
	defer span.End()

	ord, err := o.store.FindRecentByToken(ctx, token, order.StatusPending, o.window)
	if err != nil {
		log.Printf("orchestrator: execute subscription lookup: %v", err)
		return "", ErrUnprocessable
	}

	out, ok := o.callTwoPhase(ctx, "execute_agreement", func(c context.Context) gateway.Outcome {
		return o.twoPhase.ExecuteAgreement(c, token)
	})
	if !ok {
		o.failPending(ctx, ord)
		return "", ErrUnprocessable
	}

	err = o.store.Transition(ctx, ord.ID, order.StatusPending, order.StatusGatewayConfirmed, order.Fields{
		ChargeRef: out.Reference,
	})
	if err != nil {
		log.Printf("orchestrator: confirm order %s: %v", ord.ID, err)
		persistenceFailures.Inc()
		return "", ErrUnprocessable
	}
	ordersTotal.WithLabelValues(string(ord.Gateway), string(order.StatusGatewayConfirmed)).Inc()
	return out.Reference, nil
}

// Report lists orders created since the given time for the retrospective
// endpoint.
func (o *Orchestrator) Report(ctx context.Context, since time.Time) ([]order.Order, error) {
	return o.store.ListCreatedSince(ctx, since)
}

// callTwoPhase runs one two-phase gateway call behind the circuit breaker
// with latency measurement. ok is false when the circuit was open or the
// gateway refused.
func (o *Orchestrator) callTwoPhase(ctx context.Context, operation string, call func(context.Context) gateway.Outcome) (gateway.Outcome, bool) {
	name := o.twoPhase.Name()
	if !o.breaker.AllowRequest(name) {
		circuitOpenRejections.WithLabelValues(name).Inc()
		return gateway.Failed(), false
	}
	timer := prometheus.NewTimer(gatewayCallDuration.WithLabelValues(name, operation))
	out := call(ctx)
	timer.ObserveDuration()
	if out.Success {
		o.breaker.RecordSuccess(name)
	} else {
		o.breaker.RecordFailure(name)
	}
	return out, out.Success
}

// failPending records a gateway refusal on a pending order with the fixed
// reason. A lost race here means another request already settled the
// order, which needs no correction.
func (o *Orchestrator) failPending(ctx context.Context, ord *order.Order) {
	err := o.store.Transition(ctx, ord.ID, order.StatusPending, order.StatusFailed, order.Fields{
		ErrorMessage: gateway.InvalidOperationMessage,
	})
	if err != nil {
		log.Printf("orchestrator: fail order %s: %v", ord.ID, err)
		return
	}
	ordersTotal.WithLabelValues(string(ord.Gateway), string(order.StatusFailed)).Inc()
}

// deriveMessage maps a settled order onto the caller-facing result string.
func deriveMessage(ord *order.Order) string {
	switch {
	case ord.Status == order.StatusPaid:
		return SuccessMessage
	case ord.Status == order.StatusFailed && ord.ErrorMessage != "":
		return ord.ErrorMessage
	default:
		return FailureMessage
	}
}
