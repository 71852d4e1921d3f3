package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yourorg/checkout-orchestrator/internal/gateway"
	"github.com/yourorg/checkout-orchestrator/internal/order"
)

func TestGenerateEmpty(t *testing.T) {
	report := NewReporter().Generate(nil)
	assert.Zero(t, report.TotalOrders)
	assert.NotNil(t, report.AmountByGateway)
	assert.NotNil(t, report.ErrorBreakdown)
	assert.NotNil(t, report.GatewayUsage)
	assert.True(t, report.DateFrom.IsZero())
}

func TestGenerate(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	paid1 := order.New("prod-1", "buyer-1", 500, order.GatewayStripe)
	paid1.Status = order.StatusPaid
	paid1.CreatedAt = base

	paid2 := order.New("prod-2", "buyer-2", 1050, order.GatewayPayPal)
	paid2.Status = order.StatusPaid
	paid2.CreatedAt = base.Add(2 * time.Hour)

	failed := order.New("prod-1", "buyer-3", 500, order.GatewayStripe)
	failed.Status = order.StatusFailed
	failed.ErrorMessage = gateway.InvalidOperationMessage
	failed.CreatedAt = base.Add(time.Hour)

	pending := order.New("prod-1", "buyer-4", 500, order.GatewayPayPal)
	pending.CreatedAt = base.Add(-time.Hour)

	confirmed := order.New("prod-2", "buyer-5", 1050, order.GatewayPayPal)
	confirmed.Status = order.StatusGatewayConfirmed
	confirmed.CreatedAt = base.Add(3 * time.Hour)

	report := NewReporter().Generate([]order.Order{*paid1, *paid2, *failed, *pending, *confirmed})

	assert.Equal(t, 5, report.TotalOrders)
	assert.Equal(t, 2, report.PaidOrders)
	assert.Equal(t, 1, report.FailedOrders)
	assert.Equal(t, 1, report.PendingOrders)
	assert.Equal(t, 1, report.GatewayConfirmed)

	assert.EqualValues(t, 1550, report.AmountCapturedCents)
	assert.EqualValues(t, 500, report.AmountByGateway["stripe"])
	assert.EqualValues(t, 1050, report.AmountByGateway["paypal"])

	assert.Equal(t, 1, report.ErrorBreakdown[gateway.InvalidOperationMessage])
	assert.Equal(t, 2, report.GatewayUsage["stripe"])
	assert.Equal(t, 3, report.GatewayUsage["paypal"])

	assert.Equal(t, base.Add(-time.Hour), report.DateFrom)
	assert.Equal(t, base.Add(3*time.Hour), report.DateTo)
}
