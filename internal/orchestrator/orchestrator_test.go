package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/catalog"
	"github.com/yourorg/checkout-orchestrator/internal/gateway"
	"github.com/yourorg/checkout-orchestrator/internal/identity"
	"github.com/yourorg/checkout-orchestrator/internal/money"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator/circuitbreaker"
	"github.com/yourorg/checkout-orchestrator/internal/order"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
	"github.com/yourorg/checkout-orchestrator/internal/store"
)

type mockCharger struct {
	mock.Mock
}

func (m *mockCharger) Name() string { return "stripe" }

func (m *mockCharger) Pay(ctx context.Context, req gateway.PayRequest) gateway.Outcome {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Outcome)
}

type mockTwoPhase struct {
	mock.Mock
}

func (m *mockTwoPhase) Name() string { return "paypal" }

func (m *mockTwoPhase) CreatePayment(ctx context.Context, name string, price money.Cents) gateway.Outcome {
	args := m.Called(ctx, name, price)
	return args.Get(0).(gateway.Outcome)
}

func (m *mockTwoPhase) ExecutePayment(ctx context.Context, paymentID, payerID string) gateway.Outcome {
	args := m.Called(ctx, paymentID, payerID)
	return args.Get(0).(gateway.Outcome)
}

func (m *mockTwoPhase) CreateAgreement(ctx context.Context, name, planID string, start time.Time) gateway.Outcome {
	args := m.Called(ctx, name, planID, start)
	return args.Get(0).(gateway.Outcome)
}

func (m *mockTwoPhase) ExecuteAgreement(ctx context.Context, token string) gateway.Outcome {
	args := m.Called(ctx, token)
	return args.Get(0).(gateway.Outcome)
}

type fixture struct {
	orc      *orchestrator.Orchestrator
	store    *store.Memory
	charger  *mockCharger
	twoPhase *mockTwoPhase
	breaker  *circuitbreaker.CircuitBreaker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := catalog.NewInMemoryRepository()
	products.Add(catalog.Product{ID: "prod-1", Name: "Honey Jar", PriceCents: 500})
	products.Add(catalog.Product{ID: "prod-sub", Name: "Monthly Honey", PriceCents: 999,
		StripePlanID: "plan_monthly", PayPalPlanID: "P-PLAN"})

	buyers := identity.NewInMemoryRepository()
	buyers.Add(identity.Buyer{ID: "buyer-1", Email: "bee@example.com"})

	enforcer, err := policy.NewEnforcer(policy.DefaultSubmissionRules())
	require.NoError(t, err)

	f := &fixture{
		store:    store.NewMemory(),
		charger:  &mockCharger{},
		twoPhase: &mockTwoPhase{},
		breaker:  circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 3}),
	}
	f.orc = orchestrator.New(f.store, products, buyers, f.charger, f.twoPhase, enforcer, f.breaker, time.Minute)
	return f
}

func (f *fixture) onlyOrder(t *testing.T) order.Order {
	t.Helper()
	orders, err := f.store.ListCreatedSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	return orders[0]
}

func TestSubmitDirectSuccess(t *testing.T) {
	f := newFixture(t)
	f.charger.On("Pay", mock.Anything, mock.MatchedBy(func(req gateway.PayRequest) bool {
		return req.AmountCents == 500 && req.CardToken == "tok_visa" && req.PlanID == ""
	})).Return(gateway.Succeeded("ch_123"))

	msg := f.orc.Submit(context.Background(), orchestrator.Submission{
		ProductID: "prod-1", BuyerID: "buyer-1", Gateway: "stripe", PaymentToken: "tok_visa",
	})

	assert.Equal(t, orchestrator.SuccessMessage, msg)
	got := f.onlyOrder(t)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Equal(t, "ch_123", got.ChargeRef)
	assert.Empty(t, got.Token, "card tokens are never persisted")
	assert.EqualValues(t, 500, got.PriceCents)
	f.charger.AssertExpectations(t)
}

func TestSubmitDirectGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.charger.On("Pay", mock.Anything, mock.Anything).Return(gateway.Failed())

	msg := f.orc.Submit(context.Background(), orchestrator.Submission{
		ProductID: "prod-1", BuyerID: "buyer-1", Gateway: "stripe", PaymentToken: "tok_bad",
	})

	assert.Equal(t, gateway.InvalidOperationMessage, msg)
	got := f.onlyOrder(t)
	assert.Equal(t, order.StatusFailed, got.Status)
	assert.Equal(t, gateway.InvalidOperationMessage, got.ErrorMessage)
	assert.Empty(t, got.ChargeRef)
}

func TestSubmitRejectedByPolicy(t *testing.T) {
	f := newFixture(t)

	msg := f.orc.Submit(context.Background(), orchestrator.Submission{
		ProductID: "prod-1", BuyerID: "buyer-1", Gateway: "stripe",
	})

	assert.Equal(t, orchestrator.FailureMessage, msg)
	orders, err := f.store.ListCreatedSince(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, orders, "rejected submissions leave no order")
	f.charger.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything)
}

func TestSubmitUnknownProduct(t *testing.T) {
	f := newFixture(t)

	msg := f.orc.Submit(context.Background(), orchestrator.Submission{
		ProductID: "missing", BuyerID: "buyer-1", Gateway: "stripe", PaymentToken: "tok_visa",
	})

	assert.Equal(t, orchestrator.FailureMessage, msg)
	f.charger.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything)
}

func TestSubmitUnknownBuyer(t *testing.T) {
	f := newFixture(t)

	msg := f.orc.Submit(context.Background(), orchestrator.Submission{
		ProductID: "prod-1", BuyerID: "ghost", Gateway: "stripe", PaymentToken: "tok_visa",
	})

	assert.Equal(t, orchestrator.FailureMessage, msg)
	f.charger.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything)
}

func TestSubmitDirectRecurringStoresCustomerRef(t *testing.T) {
	f := newFixture(t)
	out := gateway.Succeeded("sub_42")
	out.PayerRef = "cus_9"
	f.charger.On("Pay", mock.Anything, mock.MatchedBy(func(req gateway.PayRequest) bool {
		return req.PlanID == "plan_monthly" && req.Email == "bee@example.com"
	})).Return(out)

	msg := f.orc.Submit(context.Background(), orchestrator.Submission{
		ProductID: "prod-sub", BuyerID: "buyer-1", Gateway: "stripe", PaymentToken: "tok_visa",
	})

	assert.Equal(t, orchestrator.SuccessMessage, msg)
	got := f.onlyOrder(t)
	assert.Equal(t, "sub_42", got.ChargeRef)
	assert.Equal(t, "cus_9", got.CustomerRef)
}

func TestSubmitDirectCircuitOpen(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.breaker.RecordFailure("stripe")
	}

	msg := f.orc.Submit(context.Background(), orchestrator.Submission{
		ProductID: "prod-1", BuyerID: "buyer-1", Gateway: "stripe", PaymentToken: "tok_visa",
	})

	assert.Equal(t, gateway.InvalidOperationMessage, msg)
	got := f.onlyOrder(t)
	assert.Equal(t, order.StatusFailed, got.Status)
	f.charger.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything)
}

func TestCreateAndExecutePayment(t *testing.T) {
	f := newFixture(t)
	f.twoPhase.On("CreatePayment", mock.Anything, "Honey Jar", money.Cents(500)).
		Return(gateway.Succeeded("PAY-1"))
	f.twoPhase.On("ExecutePayment", mock.Anything, "PAY-1", "PAYER-7").
		Return(gateway.Succeeded("PAY-1"))

	ref, err := f.orc.CreatePayment(context.Background(), "buyer-1", "prod-1")
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", ref)

	got := f.onlyOrder(t)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, "PAY-1", got.Token)

	require.NoError(t, f.orc.ExecutePayment(context.Background(), "PAY-1", "PAYER-7"))

	got = f.onlyOrder(t)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Equal(t, "PAY-1", got.ChargeRef)
	assert.Empty(t, got.Token, "correlation token is cleared on completion")
}

func TestExecutePaymentGatewayRefusal(t *testing.T) {
	f := newFixture(t)
	f.twoPhase.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(gateway.Succeeded("PAY-1"))
	f.twoPhase.On("ExecutePayment", mock.Anything, "PAY-1", "PAYER-7").
		Return(gateway.Failed())

	_, err := f.orc.CreatePayment(context.Background(), "buyer-1", "prod-1")
	require.NoError(t, err)

	err = f.orc.ExecutePayment(context.Background(), "PAY-1", "PAYER-7")
	assert.ErrorIs(t, err, orchestrator.ErrUnprocessable)

	got := f.onlyOrder(t)
	assert.Equal(t, order.StatusFailed, got.Status)
	assert.Equal(t, gateway.InvalidOperationMessage, got.ErrorMessage)
}

func TestExecutePaymentOutsideWindow(t *testing.T) {
	f := newFixture(t)

	ord := order.New("prod-1", "buyer-1", 500, order.GatewayPayPal)
	ord.Token = "PAY-OLD"
	ord.CreatedAt = time.Now().Add(-2 * time.Minute)
	require.NoError(t, f.store.Create(context.Background(), ord))

	err := f.orc.ExecutePayment(context.Background(), "PAY-OLD", "PAYER-7")
	assert.ErrorIs(t, err, orchestrator.ErrUnprocessable)

	got := f.onlyOrder(t)
	assert.Equal(t, order.StatusPending, got.Status, "stale confirmations mutate nothing")
	f.twoPhase.AssertNotCalled(t, "ExecutePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := newFixture(t)
	f.twoPhase.On("CreateAgreement", mock.Anything, "Monthly Honey", "P-PLAN", mock.Anything).
		Return(gateway.Succeeded("EC-TOKEN1"))
	f.twoPhase.On("ExecuteAgreement", mock.Anything, "EC-TOKEN1").
		Return(gateway.Succeeded("I-AGREE1"))

	token, err := f.orc.CreateSubscription(context.Background(), "buyer-1", "prod-sub")
	require.NoError(t, err)
	assert.Equal(t, "EC-TOKEN1", token)

	agreementID, err := f.orc.ExecuteSubscription(context.Background(), "EC-TOKEN1")
	require.NoError(t, err)
	assert.Equal(t, "I-AGREE1", agreementID)

	got := f.onlyOrder(t)
	assert.Equal(t, order.StatusGatewayConfirmed, got.Status)
	assert.Equal(t, "I-AGREE1", got.ChargeRef)
	assert.Equal(t, "EC-TOKEN1", got.Token, "token survives until the finalize step")

	msg := f.orc.Submit(context.Background(), orchestrator.Submission{
		ProductID: "prod-sub", BuyerID: "buyer-1", Gateway: "paypal", PaymentToken: "I-AGREE1",
	})
	assert.Equal(t, orchestrator.SuccessMessage, msg)

	got = f.onlyOrder(t)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Empty(t, got.Token)

	// a duplicate confirmation finds nothing to finalize
	msg = f.orc.Submit(context.Background(), orchestrator.Submission{
		ProductID: "prod-sub", BuyerID: "buyer-1", Gateway: "paypal", PaymentToken: "I-AGREE1",
	})
	assert.Equal(t, orchestrator.FailureMessage, msg)
}

func TestCreateSubscriptionWithoutPlan(t *testing.T) {
	f := newFixture(t)

	_, err := f.orc.CreateSubscription(context.Background(), "buyer-1", "prod-1")
	assert.ErrorIs(t, err, orchestrator.ErrUnprocessable)
	f.twoPhase.AssertNotCalled(t, "CreateAgreement", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePaymentYieldsIndependentOrders(t *testing.T) {
	f := newFixture(t)
	f.twoPhase.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(gateway.Succeeded("PAY-1")).Once()
	f.twoPhase.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(gateway.Succeeded("PAY-2")).Once()

	ref1, err := f.orc.CreatePayment(context.Background(), "buyer-1", "prod-1")
	require.NoError(t, err)
	ref2, err := f.orc.CreatePayment(context.Background(), "buyer-1", "prod-1")
	require.NoError(t, err)
	assert.NotEqual(t, ref1, ref2)

	orders, err := f.store.ListCreatedSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.NotEqual(t, orders[0].ID, orders[1].ID)
	assert.NotEqual(t, orders[0].Token, orders[1].Token)
}

func TestCreatePaymentGatewayRefusal(t *testing.T) {
	f := newFixture(t)
	f.twoPhase.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(gateway.Failed())

	_, err := f.orc.CreatePayment(context.Background(), "buyer-1", "prod-1")
	assert.ErrorIs(t, err, orchestrator.ErrUnprocessable)

	orders, listErr := f.store.ListCreatedSince(context.Background(), time.Time{})
	require.NoError(t, listErr)
	assert.Empty(t, orders, "no order without a gateway reference")
}
