// Package priority scores and ranks invoices for collection.
package priority

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	exposureUnit = 1000.0 // dollars per unit of exposure
	periodDays   = 30.0   // days per unit of elapsed time
	timeExponent = 1.2
	scorePlaces  = 2
)

// Score returns the collection urgency of an invoice.
//
// Invoices that are not yet overdue score exactly zero. Otherwise the score is
// (amount/1000) * (days/30)^1.2 rounded to two places, half away from zero, on the
// shortest decimal form of the float64 product (1.005 -> 1.01, 2.125 -> 2.13).
// Products beyond the float64 range are computed in decimal instead, so every
// finite amount yields a finite score. Negative amounts are not rejected and
// produce negative scores.
func Score(amount decimal.Decimal, daysOverdue int) decimal.Decimal {
	if daysOverdue <= 0 {
		return decimal.Zero
	}
	elapsed := math.Pow(float64(daysOverdue)/periodDays, timeExponent)
	product := amount.InexactFloat64() / exposureUnit * elapsed
	if math.IsInf(product, 0) || math.IsNaN(product) {
		return amount.Div(decimal.NewFromFloat(exposureUnit)).
			Mul(decimal.NewFromFloat(elapsed)).
			Round(scorePlaces)
	}
	return decimal.NewFromFloat(product).Round(scorePlaces)
}
