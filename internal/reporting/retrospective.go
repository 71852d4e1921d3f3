// Package reporting summarizes order activity for the operational report
// endpoint.
package reporting

import (
	"time"

	"github.com/yourorg/checkout-orchestrator/internal/money"
	"github.com/yourorg/checkout-orchestrator/internal/order"
)

// Report summarizes a set of orders.
type Report struct {
	TotalOrders         int                    `json:"total_orders"`
	PaidOrders          int                    `json:"paid_orders"`
	FailedOrders        int                    `json:"failed_orders"`
	PendingOrders       int                    `json:"pending_orders"`
	GatewayConfirmed    int                    `json:"gateway_confirmed_orders"`
	AmountCapturedCents money.Cents            `json:"amount_captured_cents"`
	AmountByGateway     map[string]money.Cents `json:"amount_by_gateway"`
	ErrorBreakdown      map[string]int         `json:"error_breakdown"`
	GatewayUsage        map[string]int         `json:"gateway_usage"`
	DateFrom            time.Time              `json:"date_from"`
	DateTo              time.Time              `json:"date_to"`
}

// Reporter generates retrospective reports from order records.
type Reporter struct{}

// NewReporter creates a Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Generate aggregates the given orders into a report. Amounts are counted
// for paid orders only; failed orders feed the error breakdown.
func (r *Reporter) Generate(orders []order.Order) Report {
	report := Report{
		AmountByGateway: make(map[string]money.Cents),
		ErrorBreakdown:  make(map[string]int),
		GatewayUsage:    make(map[string]int),
	}

	for i, o := range orders {
		report.TotalOrders++
		report.GatewayUsage[string(o.Gateway)]++

		if i == 0 || o.CreatedAt.Before(report.DateFrom) {
			report.DateFrom = o.CreatedAt
		}
		if o.CreatedAt.After(report.DateTo) {
			report.DateTo = o.CreatedAt
		}

		switch o.Status {
		case order.StatusPaid:
			report.PaidOrders++
			report.AmountCapturedCents += o.PriceCents
			report.AmountByGateway[string(o.Gateway)] += o.PriceCents
		case order.StatusFailed:
			report.FailedOrders++
			if o.ErrorMessage != "" {
				report.ErrorBreakdown[o.ErrorMessage]++
			}
		case order.StatusPending:
			report.PendingOrders++
		case order.StatusGatewayConfirmed:
			report.GatewayConfirmed++
		}
	}
	return report
}
