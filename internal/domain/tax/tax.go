// Package tax provides jurisdictional tax-rate lookup and the effective-rate
// calculation used when pricing orders.
package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// Rate is an active tax rate for a jurisdiction. ProvinceState is empty for
// country-wide rates. Multiple rates can apply to the same location (e.g.
// GST + PST) and are summed.
type Rate struct {
	ID            string
	Name          string
	Country       string
	ProvinceState string
	Rate          decimal.Decimal
	Active        bool
}

// Repository defines the rate lookup used by the pricing engine.
type Repository interface {
	// GetActiveRatesByLocation returns every active rate applying to the
	// given country and province/state. An empty result is valid and means
	// zero tax.
	GetActiveRatesByLocation(ctx context.Context, country, provinceState string) ([]Rate, error)
}

// EffectiveRate sums the rate fractions of all applicable rates. An empty
// slice yields zero.
func EffectiveRate(rates []Rate) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rates {
		total = total.Add(r.Rate)
	}
	return total
}
