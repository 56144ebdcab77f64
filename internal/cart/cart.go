// Package cart holds the checkout cart of a single session and prices it.
// A Cart is not safe for concurrent use; the service serialises access per
// session.
package cart

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/poserr"
)

type State int

const (
	Empty State = iota
	NonEmpty
)

func (s State) String() string {
	if s == NonEmpty {
		return "non_empty"
	}
	return "empty"
}

// Item is the product snapshot added to the cart. The unit price is fixed at
// the time the product is first added.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
}

func ItemFromProduct(p domain.Product) Item {
	return Item{ProductID: p.ID, Name: p.Name, UnitPrice: decimal.NewFromFloat(p.Price)}
}

type Line struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart keeps at most one line per product, in insertion order. Every line
// has a positive quantity.
type Cart struct {
	lines        []Line
	cashReceived decimal.Decimal
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem increments the line of item.ProductID, or appends a new line with
// quantity 1.
func (c *Cart) AddItem(item Item) {
	if i := c.index(item.ProductID); i >= 0 {
		c.lines[i].Quantity++
		return
	}
	c.lines = append(c.lines, Line{
		ProductID: item.ProductID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Quantity:  1,
	})
}

func (c *Cart) RemoveItem(productID string) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	if len(c.lines) == 0 {
		c.lines = nil
	}
}

// SetQuantity replaces the quantity of an existing line. qty <= 0 removes
// the line; unknown products are ignored.
func (c *Cart) SetQuantity(productID string, qty int) {
	if qty <= 0 {
		c.RemoveItem(productID)
		return
	}
	if i := c.index(productID); i >= 0 {
		c.lines[i].Quantity = qty
	}
}

// SetQuantityInput applies raw user input. Anything that is not a whole
// number counts as 0 and removes the line.
func (c *Cart) SetQuantityInput(productID string, raw string) {
	c.SetQuantity(productID, ParseQuantity(raw))
}

func ParseQuantity(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return int(n)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

func (c *Cart) SetCashReceived(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return poserr.Invalid("cash_received", "must not be negative")
	}
	c.cashReceived = amount
	return nil
}

func (c *Cart) CashReceived() decimal.Decimal {
	return c.cashReceived
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) State() State {
	if len(c.lines) == 0 {
		return Empty
	}
	return NonEmpty
}

func (c *Cart) Pricing(rates Rates, paymentMethod string) Pricing {
	return ComputePricing(c.lines, rates, paymentMethod, c.cashReceived)
}

// CanComplete reports whether checkout is enabled for the current contents.
func (c *Cart) CanComplete(rates Rates) bool {
	return c.State() == NonEmpty && c.Pricing(rates, "").Total.IsPositive()
}

// Clear drops all lines and the cash received.
func (c *Cart) Clear() {
	c.lines = nil
	c.cashReceived = decimal.Zero
}

// Sale is the immutable record handed to the writer on completion.
type Sale struct {
	Lines         []Line
	Pricing       Pricing
	PaymentMethod string
	CashReceived  decimal.Decimal
}

type SaleWriter interface {
	RecordSale(ctx context.Context, sale Sale) error
}

type SaleWriterFunc func(ctx context.Context, sale Sale) error

func (f SaleWriterFunc) RecordSale(ctx context.Context, sale Sale) error {
	return f(ctx, sale)
}

// Complete prices the cart and records the sale. The cart is cleared only
// after the writer succeeds, so a failed write can be retried as is.
func (c *Cart) Complete(ctx context.Context, rates Rates, paymentMethod string, writer SaleWriter) (Sale, error) {
	if !domain.IsPaymentMethod(paymentMethod) {
		return Sale{}, poserr.Invalid("payment_method", "unsupported payment method")
	}

	pricing := c.Pricing(rates, paymentMethod)
	if c.State() == Empty || !pricing.Total.IsPositive() {
		return Sale{}, poserr.Invalid("cart", "total must be greater than zero")
	}
	if paymentMethod == domain.PaymentCash && c.cashReceived.LessThan(pricing.Total) {
		return Sale{}, poserr.Invalid("cash_received", "cash received is less than the total")
	}

	cash := decimal.Zero
	if paymentMethod == domain.PaymentCash {
		cash = c.cashReceived
	}
	sale := Sale{
		Lines:         c.Lines(),
		Pricing:       pricing,
		PaymentMethod: paymentMethod,
		CashReceived:  cash,
	}

	if err := writer.RecordSale(ctx, sale); err != nil {
		return Sale{}, &poserr.WriteError{Op: "record sale", Err: err}
	}

	c.Clear()
	return sale, nil
}
