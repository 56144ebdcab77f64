package cart

import (
	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/poserr"
)

var hundred = decimal.NewFromInt(100)

// Rates are merchant settings expressed as percentages in [0, 100].
type Rates struct {
	TaxPercent      decimal.Decimal
	DiscountPercent decimal.Decimal
}

func RatesFromSettings(settings domain.Settings) Rates {
	return Rates{
		TaxPercent:      decimal.NewFromFloat(settings.TaxRatePercent),
		DiscountPercent: decimal.NewFromFloat(settings.DiscountRatePercent),
	}
}

func ValidateRates(taxPercent float64, discountPercent float64) error {
	if taxPercent < 0 || taxPercent > 100 {
		return poserr.Invalid("tax_rate_percent", "must be between 0 and 100")
	}
	if discountPercent < 0 || discountPercent > 100 {
		return poserr.Invalid("discount_rate_percent", "must be between 0 and 100")
	}
	return nil
}

type Pricing struct {
	Subtotal              decimal.Decimal
	DiscountAmount        decimal.Decimal
	SubtotalAfterDiscount decimal.Decimal
	TaxAmount             decimal.Decimal
	Total                 decimal.Decimal
	ChangeGiven           decimal.Decimal
}

// ComputePricing derives the monetary breakdown of lines. The steps run in a
// fixed order: tax is charged on the amount left after the discount.
func ComputePricing(lines []Line, rates Rates, paymentMethod string, cashReceived decimal.Decimal) Pricing {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Total())
	}

	discount := subtotal.Mul(rates.DiscountPercent).Div(hundred)
	afterDiscount := subtotal.Sub(discount)
	tax := afterDiscount.Mul(rates.TaxPercent).Div(hundred)
	total := afterDiscount.Add(tax)

	change := decimal.Zero
	if paymentMethod == domain.PaymentCash && cashReceived.GreaterThan(total) {
		change = cashReceived.Sub(total)
	}

	return Pricing{
		Subtotal:              subtotal,
		DiscountAmount:        discount,
		SubtotalAfterDiscount: afterDiscount,
		TaxAmount:             tax,
		Total:                 total,
		ChangeGiven:           change,
	}
}

// Totals is the JSON view of a Pricing, rounded to cents.
type Totals struct {
	Subtotal              float64 `json:"subtotal"`
	DiscountAmount        float64 `json:"discount_amount"`
	SubtotalAfterDiscount float64 `json:"subtotal_after_discount"`
	TaxAmount             float64 `json:"tax_amount"`
	Total                 float64 `json:"total"`
	ChangeGiven           float64 `json:"change_given"`
}

func (p Pricing) Totals() Totals {
	return Totals{
		Subtotal:              Amount(p.Subtotal),
		DiscountAmount:        Amount(p.DiscountAmount),
		SubtotalAfterDiscount: Amount(p.SubtotalAfterDiscount),
		TaxAmount:             Amount(p.TaxAmount),
		Total:                 Amount(p.Total),
		ChangeGiven:           Amount(p.ChangeGiven),
	}
}

// Amount rounds d to two places for storage and display.
func Amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
