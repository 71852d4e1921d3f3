// Package money holds the integer minor-unit amount type that feeds every
// gateway call. Amounts are captured in cents at order creation and never
// recomputed; arithmetic on floats is deliberately avoided.
package money

import "fmt"

// Currency is the only currency the checkout flow charges in.
const Currency = "USD"

// Cents is an amount in minor currency units.
type Cents int64

// Positive reports whether the amount is chargeable. Every gateway call
// requires a positive integer number of minor units.
func (c Cents) Positive() bool {
	return c > 0
}

// Decimal renders the amount in the "5.00" form the two-phase gateway's
// API expects for item prices and totals.
func (c Cents) Decimal() string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
