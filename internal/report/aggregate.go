package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
)

type Totals struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// Aggregate counts transactions and sums their totals. Empty input yields
// the zero value.
func Aggregate(transactions []domain.Transaction) Totals {
	sum := decimal.Zero
	for _, tx := range transactions {
		sum = sum.Add(decimal.NewFromFloat(tx.TotalAmount))
	}
	return Totals{Count: len(transactions), TotalAmount: sum.Round(2).InexactFloat64()}
}

type Bucket struct {
	Key         string  `json:"key"`
	Label       string  `json:"label"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

type Summary struct {
	Totals
	Subtotal       float64  `json:"subtotal"`
	DiscountAmount float64  `json:"discount_amount"`
	TaxAmount      float64  `json:"tax_amount"`
	ByPayment      []Bucket `json:"by_payment"`
	ByOutlet       []Bucket `json:"by_outlet"`
}

type bucketAcc struct {
	label string
	count int
	sum   decimal.Decimal
}

// Summarize extends Aggregate with discount and tax sums and breakdowns by
// payment method and outlet. Buckets are ordered by descending total.
func Summarize(transactions []domain.Transaction, dir Directory) Summary {
	var subtotal, discount, tax decimal.Decimal
	byPayment := map[string]*bucketAcc{}
	byOutlet := map[string]*bucketAcc{}

	add := func(m map[string]*bucketAcc, key string, label string, amount decimal.Decimal) {
		acc, ok := m[key]
		if !ok {
			acc = &bucketAcc{label: label}
			m[key] = acc
		}
		acc.count++
		acc.sum = acc.sum.Add(amount)
	}

	for _, tx := range transactions {
		amount := decimal.NewFromFloat(tx.TotalAmount)
		subtotal = subtotal.Add(decimal.NewFromFloat(tx.Subtotal))
		discount = discount.Add(decimal.NewFromFloat(tx.DiscountAmount))
		tax = tax.Add(decimal.NewFromFloat(tx.TaxAmount))
		add(byPayment, tx.PaymentMethod, PaymentLabel(tx.PaymentMethod), amount)
		add(byOutlet, tx.OutletID, dir.OutletName(tx.OutletID, tx.OutletName), amount)
	}

	return Summary{
		Totals:         Aggregate(transactions),
		Subtotal:       subtotal.Round(2).InexactFloat64(),
		DiscountAmount: discount.Round(2).InexactFloat64(),
		TaxAmount:      tax.Round(2).InexactFloat64(),
		ByPayment:      flattenBuckets(byPayment),
		ByOutlet:       flattenBuckets(byOutlet),
	}
}

func flattenBuckets(m map[string]*bucketAcc) []Bucket {
	out := make([]Bucket, 0, len(m))
	for key, acc := range m {
		out = append(out, Bucket{
			Key:         key,
			Label:       acc.label,
			Count:       acc.count,
			TotalAmount: acc.sum.Round(2).InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAmount == out[j].TotalAmount {
			return out[i].Key < out[j].Key
		}
		return out[i].TotalAmount > out[j].TotalAmount
	})
	return out
}
