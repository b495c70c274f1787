// Package pricing computes the commission split for a booking total.
// The split is pure arithmetic over the configured rates; callers persist
// the result on the payment so it is never recomputed.
package pricing

import (
	"math"

	"github.com/festbook/festbook-backend/internal/models"
)

// Rates holds the commission percentages. They are loaded once at startup
// and passed in explicitly; nothing reads them from the environment.
type Rates struct {
	PlatformFeePercent float64 // platform's cut of the booking total
	AdvancePercent     float64 // advance slice of the vendor amount
}

// DefaultRates is the platform's standing commission scheme: 6% platform
// fee, 15% of the vendor amount paid out as advance.
var DefaultRates = Rates{PlatformFeePercent: 6, AdvancePercent: 15}

// Split breaks a booking total into the platform fee, the vendor amount, and
// the advance/remaining slices of the vendor amount. Intermediate rupee
// amounts are not rounded.
func (r Rates) Split(total float64) models.Breakdown {
	fee := total * r.PlatformFeePercent / 100
	vendor := total - fee
	advance := vendor * r.AdvancePercent / 100
	return models.Breakdown{
		Total:           total,
		PlatformFee:     fee,
		VendorAmount:    vendor,
		AdvanceAmount:   advance,
		RemainingAmount: vendor - advance,
	}
}

// Paise converts a rupee amount to the gateway's integer minor unit.
// Rounding happens only here, at the boundary.
func Paise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
