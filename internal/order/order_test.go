package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/money"
)

func TestParseGateway(t *testing.T) {
	gw, err := ParseGateway("stripe")
	require.NoError(t, err)
	assert.Equal(t, GatewayStripe, gw)

	gw, err = ParseGateway("paypal")
	require.NoError(t, err)
	assert.Equal(t, GatewayPayPal, gw)

	_, err = ParseGateway("adyen")
	assert.Error(t, err)

	_, err = ParseGateway("")
	assert.Error(t, err)
}

func TestNewOrder(t *testing.T) {
	o := New("prod-1", "buyer-1", money.Cents(500), GatewayStripe)
	require.NotNil(t, o)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, money.Cents(500), o.PriceCents)
	assert.Empty(t, o.ChargeRef)
	assert.Empty(t, o.ErrorMessage)
	assert.False(t, o.CreatedAt.IsZero())
}

func TestMarkPaidFromPending(t *testing.T) {
	o := New("prod-1", "buyer-1", money.Cents(500), GatewayStripe)
	require.NoError(t, o.MarkPaid("ch_123"))
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "ch_123", o.ChargeRef)
}

func TestMarkPaidKeepsExistingReference(t *testing.T) {
	o := New("prod-1", "buyer-1", money.Cents(500), GatewayPayPal)
	require.NoError(t, o.MarkGatewayConfirmed("I-AGREEMENT"))
	require.NoError(t, o.MarkPaid(""))
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "I-AGREEMENT", o.ChargeRef)
}

func TestMarkFailed(t *testing.T) {
	o := New("prod-1", "buyer-1", money.Cents(500), GatewayStripe)
	require.NoError(t, o.MarkFailed("Invalid Payment Operation"))
	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, "Invalid Payment Operation", o.ErrorMessage)
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	paid := New("p", "b", 100, GatewayStripe)
	require.NoError(t, paid.MarkPaid("ch_1"))
	assert.Error(t, paid.MarkFailed("nope"))
	assert.Error(t, paid.MarkGatewayConfirmed("ref"))
	assert.Error(t, paid.MarkPaid("ch_2"))
	assert.Equal(t, "ch_1", paid.ChargeRef)

	failed := New("p", "b", 100, GatewayStripe)
	require.NoError(t, failed.MarkFailed("reason"))
	assert.Error(t, failed.MarkPaid("ch_1"))
	assert.Equal(t, StatusFailed, failed.Status)
}

func TestGatewayConfirmedOnlyPromotesToPaid(t *testing.T) {
	o := New("p", "b", 100, GatewayPayPal)
	require.NoError(t, o.MarkGatewayConfirmed("I-1"))
	assert.Error(t, o.MarkFailed("nope"))
	assert.Error(t, o.MarkGatewayConfirmed("I-2"))
	require.NoError(t, o.MarkPaid(""))
	assert.Equal(t, StatusPaid, o.Status)
}
