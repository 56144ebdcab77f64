package report

import (
	"time"

	"kasirpos/backend/internal/domain"
)

type ReceiptLine struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type Receipt struct {
	TransactionID string        `json:"transaction_id"`
	OutletName    string        `json:"outlet_name"`
	KasirName     string        `json:"kasir_name"`
	PaymentMethod string        `json:"payment_method"`
	IssuedAt      string        `json:"issued_at"`
	Lines         []ReceiptLine `json:"lines"`
	Subtotal      string        `json:"subtotal"`
	Discount      string        `json:"discount"`
	Tax           string        `json:"tax"`
	Total         string        `json:"total"`
	CashReceived  string        `json:"cash_received,omitempty"`
	Change        string        `json:"change,omitempty"`
}

// BuildReceipt formats a stored transaction for printing.
func BuildReceipt(tx domain.Transaction, dir Directory, loc *time.Location) Receipt {
	if loc == nil {
		loc = time.UTC
	}
	money := NewMoney()

	lines := make([]ReceiptLine, 0, len(tx.Items))
	for _, item := range tx.Items {
		lines = append(lines, ReceiptLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: money.Format(item.UnitPrice),
			LineTotal: money.Format(item.LineTotal),
		})
	}

	receipt := Receipt{
		TransactionID: tx.ID,
		OutletName:    dir.OutletName(tx.OutletID, tx.OutletName),
		KasirName:     dir.KasirName(tx.KasirID, tx.KasirName),
		PaymentMethod: PaymentLabel(tx.PaymentMethod),
		IssuedAt:      tx.Timestamp.In(loc).Format(stampLayout),
		Lines:         lines,
		Subtotal:      money.Format(tx.Subtotal),
		Discount:      money.Format(tx.DiscountAmount),
		Tax:           money.Format(tx.TaxAmount),
		Total:         money.Format(tx.TotalAmount),
	}
	if tx.PaymentMethod == domain.PaymentCash {
		receipt.CashReceived = money.Format(tx.CashReceived)
		receipt.Change = money.Format(tx.ChangeGiven)
	}
	return receipt
}
