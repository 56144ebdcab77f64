package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/poserr"
)

func item(id string, price int64) Item {
	return Item{ProductID: id, Name: "Produk " + id, UnitPrice: decimal.NewFromInt(price)}
}

func rates(tax, discount int64) Rates {
	return Rates{TaxPercent: decimal.NewFromInt(tax), DiscountPercent: decimal.NewFromInt(discount)}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	c := New()
	c.AddItem(item("kopi", 18000))
	c.AddItem(item("teh", 5000))
	c.AddItem(item("kopi", 18000))

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "kopi", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "teh", lines[1].ProductID)
	assert.Equal(t, 1, lines[1].Quantity)
	assert.Equal(t, NonEmpty, c.State())
}

func TestAddThenRemoveRestoresPriorCart(t *testing.T) {
	c := New()
	c.AddItem(item("kopi", 18000))
	c.SetQuantity("kopi", 3)
	before := c.Lines()

	c.AddItem(item("roti", 12000))
	c.RemoveItem("roti")

	assert.Equal(t, before, c.Lines())

	empty := New()
	empty.AddItem(item("roti", 12000))
	empty.RemoveItem("roti")
	assert.Empty(t, empty.Lines())
	assert.Equal(t, Empty, empty.State())
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	c := New()
	c.AddItem(item("kopi", 18000))
	c.RemoveItem("nope")
	assert.Len(t, c.Lines(), 1)
}

func TestSetQuantityZeroEqualsRemove(t *testing.T) {
	a := New()
	b := New()
	for _, c := range []*Cart{a, b} {
		c.AddItem(item("kopi", 18000))
		c.AddItem(item("teh", 5000))
	}

	a.SetQuantity("kopi", 0)
	b.RemoveItem("kopi")
	assert.Equal(t, b.Lines(), a.Lines())

	a.SetQuantity("teh", -4)
	assert.Equal(t, Empty, a.State())
}

func TestSetQuantityReplacesAndIgnoresUnknown(t *testing.T) {
	c := New()
	c.AddItem(item("kopi", 18000))
	c.SetQuantity("kopi", 7)
	c.SetQuantity("ghost", 2)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Quantity)
}

func TestSetQuantityInputCoercion(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"3", 3},
		{" 4 ", 4},
		{"2.0", 2},
		{"2.5", 0},
		{"abc", 0},
		{"", 0},
		{"-1", 0},
		{"NaN", 0},
		{"1e12", 0},
		{"99999999999", 0},
		{"99999999999.0", 0},
		{"2147483647", 2147483647},
	}
	for _, tc := range cases {
		c := New()
		c.AddItem(item("kopi", 18000))
		c.SetQuantityInput("kopi", tc.raw)
		lines := c.Lines()
		if tc.want == 0 {
			assert.Empty(t, lines, "input %q", tc.raw)
			continue
		}
		require.Len(t, lines, 1, "input %q", tc.raw)
		assert.Equal(t, tc.want, lines[0].Quantity, "input %q", tc.raw)
	}
}

func TestComputePricingExample(t *testing.T) {
	lines := []Line{{ProductID: "kopi", UnitPrice: decimal.NewFromInt(18000), Quantity: 2}}

	p := ComputePricing(lines, rates(11, 5), domain.PaymentCash, decimal.NewFromInt(40000))

	assert.True(t, p.Subtotal.Equal(dec(t, "36000")), p.Subtotal.String())
	assert.True(t, p.DiscountAmount.Equal(dec(t, "1800")), p.DiscountAmount.String())
	assert.True(t, p.SubtotalAfterDiscount.Equal(dec(t, "34200")), p.SubtotalAfterDiscount.String())
	assert.True(t, p.TaxAmount.Equal(dec(t, "3762")), p.TaxAmount.String())
	assert.True(t, p.Total.Equal(dec(t, "37962")), p.Total.String())
	assert.True(t, p.ChangeGiven.Equal(dec(t, "2038")), p.ChangeGiven.String())

	short := ComputePricing(lines, rates(11, 5), domain.PaymentCash, decimal.NewFromInt(30000))
	assert.True(t, short.ChangeGiven.IsZero())

	qris := ComputePricing(lines, rates(11, 5), domain.PaymentQRIS, decimal.NewFromInt(40000))
	assert.True(t, qris.ChangeGiven.IsZero())

	totals := p.Totals()
	assert.Equal(t, 37962.0, totals.Total)
	assert.Equal(t, 2038.0, totals.ChangeGiven)
}

func TestComputePricingTotalFormula(t *testing.T) {
	for _, subtotal := range []int64{0, 1, 999, 36000, 1234567} {
		for _, d := range []int64{0, 5, 12, 50, 100} {
			for _, tax := range []int64{0, 10, 11, 100} {
				lines := []Line{{ProductID: "x", UnitPrice: decimal.NewFromInt(subtotal), Quantity: 1}}
				p := ComputePricing(lines, rates(tax, d), domain.PaymentCard, decimal.Zero)

				s := decimal.NewFromInt(subtotal)
				want := s.Sub(s.Mul(decimal.NewFromInt(d)).Div(hundred)).
					Mul(decimal.NewFromInt(1).Add(decimal.NewFromInt(tax).Div(hundred)))
				assert.True(t, p.Total.Equal(want), "subtotal=%d d=%d t=%d got=%s want=%s", subtotal, d, tax, p.Total, want)
			}
		}
	}
}

func TestSubtotalIsSumOfLines(t *testing.T) {
	c := New()
	c.AddItem(item("a", 1500))
	c.AddItem(item("b", 2750))
	c.SetQuantity("b", 4)
	c.AddItem(item("a", 1500))

	p := c.Pricing(rates(0, 0), domain.PaymentCard)
	assert.True(t, p.Subtotal.Equal(decimal.NewFromInt(1500*2+2750*4)))
}

type recorder struct {
	sales []Sale
	err   error
}

func (r *recorder) RecordSale(_ context.Context, sale Sale) error {
	if r.err != nil {
		return r.err
	}
	r.sales = append(r.sales, sale)
	return nil
}

func TestCompleteRejectsEmptyOrZeroCart(t *testing.T) {
	w := &recorder{}

	_, err := New().Complete(context.Background(), rates(11, 0), domain.PaymentQRIS, w)
	require.Error(t, err)
	assert.True(t, poserr.IsValidation(err))

	free := New()
	free.AddItem(item("bonus", 0))
	assert.False(t, free.CanComplete(rates(11, 0)))
	_, err = free.Complete(context.Background(), rates(11, 0), domain.PaymentQRIS, w)
	assert.True(t, poserr.IsValidation(err))

	fullDiscount := New()
	fullDiscount.AddItem(item("kopi", 18000))
	_, err = fullDiscount.Complete(context.Background(), rates(11, 100), domain.PaymentQRIS, w)
	assert.True(t, poserr.IsValidation(err))

	assert.Empty(t, w.sales)
}

func TestCompleteRejectsUnknownMethodAndShortCash(t *testing.T) {
	c := New()
	c.AddItem(item("kopi", 18000))
	w := &recorder{}

	_, err := c.Complete(context.Background(), rates(0, 0), "barter", w)
	assert.True(t, poserr.IsValidation(err))

	require.NoError(t, c.SetCashReceived(decimal.NewFromInt(10000)))
	_, err = c.Complete(context.Background(), rates(0, 0), domain.PaymentCash, w)
	assert.True(t, poserr.IsValidation(err))
	assert.Equal(t, NonEmpty, c.State())
	assert.Empty(t, w.sales)

	assert.Error(t, c.SetCashReceived(decimal.NewFromInt(-1)))
}

func TestCompleteClearsCartOnSuccess(t *testing.T) {
	c := New()
	c.AddItem(item("kopi", 18000))
	c.AddItem(item("kopi", 18000))
	require.NoError(t, c.SetCashReceived(decimal.NewFromInt(40000)))
	w := &recorder{}

	sale, err := c.Complete(context.Background(), rates(11, 5), domain.PaymentCash, w)
	require.NoError(t, err)

	require.Len(t, w.sales, 1)
	assert.True(t, sale.Pricing.Total.Equal(decimal.NewFromInt(37962)))
	assert.True(t, sale.Pricing.ChangeGiven.Equal(decimal.NewFromInt(2038)))
	assert.True(t, sale.CashReceived.Equal(decimal.NewFromInt(40000)))
	assert.Len(t, sale.Lines, 1)
	assert.Equal(t, Empty, c.State())
	assert.True(t, c.CashReceived().IsZero())
}

func TestCompleteKeepsCartWhenWriteFails(t *testing.T) {
	c := New()
	c.AddItem(item("kopi", 18000))
	require.NoError(t, c.SetCashReceived(decimal.NewFromInt(20000)))
	before := c.Lines()
	storeErr := errors.New("network unreachable")

	_, err := c.Complete(context.Background(), rates(0, 0), domain.PaymentCash, &recorder{err: storeErr})
	require.Error(t, err)
	assert.True(t, poserr.IsWrite(err))
	assert.ErrorIs(t, err, storeErr)

	assert.Equal(t, before, c.Lines())
	assert.True(t, c.CashReceived().Equal(decimal.NewFromInt(20000)))

	w := &recorder{}
	_, err = c.Complete(context.Background(), rates(0, 0), domain.PaymentCash, w)
	require.NoError(t, err)
	assert.Len(t, w.sales, 1)
}

func TestNonCashSaleIgnoresCashField(t *testing.T) {
	c := New()
	c.AddItem(item("kopi", 18000))
	require.NoError(t, c.SetCashReceived(decimal.NewFromInt(50000)))

	sale, err := c.Complete(context.Background(), rates(0, 0), domain.PaymentCard, SaleWriterFunc(func(context.Context, Sale) error { return nil }))
	require.NoError(t, err)
	assert.True(t, sale.CashReceived.IsZero())
	assert.True(t, sale.Pricing.ChangeGiven.IsZero())
}

func TestValidateRates(t *testing.T) {
	assert.NoError(t, ValidateRates(11, 0))
	assert.NoError(t, ValidateRates(100, 100))
	assert.True(t, poserr.IsValidation(ValidateRates(-1, 0)))
	assert.True(t, poserr.IsValidation(ValidateRates(11, 101)))
}
