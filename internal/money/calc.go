// Package money implements the monetary line calculator: tax-inclusive
// line values and order grand totals. All functions are pure; amounts
// accumulate at full precision and are rounded once, at presentation.
package money

import "github.com/shopspring/decimal"

// DefaultVATPercent applies when a line carries no VAT rate at all.
var DefaultVATPercent = decimal.NewFromInt(20)

var hundred = decimal.NewFromInt(100)

// VATRate is a tri-state VAT percentage. A rate that is present but zero
// (zero-rated goods) is distinct from an absent rate; only the latter
// falls back to DefaultVATPercent. Never test the value against zero to
// decide whether a rate was supplied.
type VATRate struct {
	value decimal.Decimal
	set   bool
}

// RateOf returns a present VAT rate, including an explicit zero.
func RateOf(percent decimal.Decimal) VATRate {
	return VATRate{value: percent, set: true}
}

// RateOfFloat is a convenience wrapper around RateOf.
func RateOfFloat(percent float64) VATRate {
	return VATRate{value: decimal.NewFromFloat(percent), set: true}
}

// NoRate returns an absent VAT rate.
func NoRate() VATRate {
	return VATRate{}
}

// Set reports whether the rate was supplied.
func (r VATRate) Set() bool { return r.set }

// Percent returns the effective percentage: the supplied value when set,
// DefaultVATPercent otherwise.
func (r VATRate) Percent() decimal.Decimal {
	if r.set {
		return r.value
	}
	return DefaultVATPercent
}

// Or returns r when set, fallback otherwise. Used to chain an item's rate
// through the order line's rate down to the catalog default.
func (r VATRate) Or(fallback VATRate) VATRate {
	if r.set {
		return r
	}
	return fallback
}

// Line is the calculator's view of an order or credit-note line.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	VAT       VATRate
}

// LineTotal computes a single line's value. With includeVAT the pre-tax
// value qty*unitPrice is multiplied by (1 + rate/100).
func LineTotal(qty, unitPrice decimal.Decimal, rate VATRate, includeVAT bool) decimal.Decimal {
	total := qty.Mul(unitPrice)
	if includeVAT {
		total = total.Mul(decimal.NewFromInt(1).Add(rate.Percent().Div(hundred)))
	}
	return total
}

// OrderTotal sums the line totals and, when includeDelivery is set, adds
// the delivery cost un-taxed, once, at the order level.
func OrderTotal(lines []Line, deliveryCost decimal.Decimal, includeDelivery, includeVAT bool) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineTotal(l.Quantity, l.UnitPrice, l.VAT, includeVAT))
	}
	if includeDelivery {
		total = total.Add(deliveryCost)
	}
	return total
}

// Round2 rounds an accumulated amount to 2 decimal places. Call it at the
// edge only; intermediate sums stay at full precision.
func Round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
