package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"kasirpos/backend/internal/access"
	"kasirpos/backend/internal/domain"
)

const (
	notAvailable = "N/A"
	dateLayout   = "02/01/2006"
	stampLayout  = "02/01/2006 15:04"
)

// Directory resolves display names of outlets and kasirs by id.
type Directory struct {
	Outlets map[string]string
	Kasirs  map[string]string
}

func NewDirectory(outlets []domain.Outlet, kasirs []domain.UserAccount) Directory {
	dir := Directory{
		Outlets: make(map[string]string, len(outlets)),
		Kasirs:  make(map[string]string, len(kasirs)),
	}
	for _, o := range outlets {
		dir.Outlets[o.ID] = o.Name
	}
	for _, k := range kasirs {
		name := strings.TrimSpace(k.DisplayName)
		if name == "" {
			name = k.Email
		}
		dir.Kasirs[k.UID] = name
	}
	return dir
}

func resolveName(names map[string]string, id string, fallback string) string {
	if name := strings.TrimSpace(names[id]); name != "" {
		return name
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return notAvailable
}

// OutletName looks id up, then falls back to the denormalized name, then "N/A".
func (d Directory) OutletName(id string, fallback string) string {
	return resolveName(d.Outlets, id, fallback)
}

func (d Directory) KasirName(id string, fallback string) string {
	return resolveName(d.Kasirs, id, fallback)
}

func PaymentLabel(method string) string {
	switch method {
	case domain.PaymentCash:
		return "Cash"
	case domain.PaymentQRIS:
		return "QRIS"
	case domain.PaymentCard:
		return "Card"
	case domain.PaymentTransfer:
		return "Bank Transfer"
	case domain.PaymentEWallet:
		return "E-Wallet"
	case "":
		return notAvailable
	}
	return strings.ToUpper(method)
}

// Money formats rupiah amounts with Indonesian digit grouping. A Money value
// is not safe for concurrent use.
type Money struct {
	printer *message.Printer
}

func NewMoney() Money {
	return Money{printer: message.NewPrinter(language.Indonesian)}
}

func (m Money) Format(amount float64) string {
	return m.printer.Sprintf("Rp %v", number.Decimal(amount, number.MaxFractionDigits(2)))
}

// Description carries the labels printed above the report table.
type Description struct {
	Title          string
	OutletLabel    string
	DateRangeLabel string
	GeneratedAt    time.Time
	Location       *time.Location
}

// Describe builds report labels for filter as seen by sess.
func Describe(filter Filter, sess domain.Session, dir Directory, generatedAt time.Time, loc *time.Location) Description {
	if loc == nil {
		loc = time.UTC
	}

	policy := access.For(sess)
	outletLabel := "All outlets"
	switch {
	case isActive(filter.OutletID) && access.OutletVisible(policy, sess, filter.OutletID):
		outletLabel = dir.OutletName(filter.OutletID, filter.OutletID)
	case sess.Role == domain.RoleKasir && len(sess.OutletIDs) == 1:
		outletLabel = dir.OutletName(sess.OutletIDs[0], "")
	case sess.Role == domain.RoleKasir:
		outletLabel = "Assigned outlets"
	}

	rangeLabel := "All dates"
	switch {
	case filter.From != nil && filter.To != nil:
		rangeLabel = fmt.Sprintf("%s - %s", filter.From.In(loc).Format(dateLayout), filter.To.In(loc).Format(dateLayout))
	case filter.From != nil:
		rangeLabel = "From " + filter.From.In(loc).Format(dateLayout)
	case filter.To != nil:
		rangeLabel = "Until " + filter.To.In(loc).Format(dateLayout)
	}

	return Description{
		Title:          "Sales Report",
		OutletLabel:    outletLabel,
		DateRangeLabel: rangeLabel,
		GeneratedAt:    generatedAt,
		Location:       loc,
	}
}

type Row struct {
	Index         int     `json:"index"`
	Date          string  `json:"date"`
	OutletName    string  `json:"outlet_name"`
	KasirName     string  `json:"kasir_name"`
	PaymentMethod string  `json:"payment_method"`
	Amount        string  `json:"amount"`
	AmountValue   float64 `json:"amount_value"`
}

type Document struct {
	Title          string `json:"title"`
	OutletLabel    string `json:"outlet_label"`
	DateRangeLabel string `json:"date_range_label"`
	GeneratedAt    string `json:"generated_at"`
	Rows           []Row  `json:"rows"`
	Totals         Totals `json:"totals"`
	TotalLabel     string `json:"total_label"`
}

// BuildDocument projects transactions into printable rows. It does not
// modify its inputs; empty input produces a document without rows.
func BuildDocument(transactions []domain.Transaction, totals Totals, desc Description, dir Directory) Document {
	loc := desc.Location
	if loc == nil {
		loc = time.UTC
	}
	money := NewMoney()

	rows := make([]Row, 0, len(transactions))
	for i, tx := range transactions {
		rows = append(rows, Row{
			Index:         i + 1,
			Date:          tx.Timestamp.In(loc).Format(stampLayout),
			OutletName:    dir.OutletName(tx.OutletID, tx.OutletName),
			KasirName:     dir.KasirName(tx.KasirID, tx.KasirName),
			PaymentMethod: PaymentLabel(tx.PaymentMethod),
			Amount:        money.Format(tx.TotalAmount),
			AmountValue:   tx.TotalAmount,
		})
	}

	return Document{
		Title:          desc.Title,
		OutletLabel:    desc.OutletLabel,
		DateRangeLabel: desc.DateRangeLabel,
		GeneratedAt:    desc.GeneratedAt.In(loc).Format(stampLayout),
		Rows:           rows,
		Totals:         totals,
		TotalLabel:     money.Format(totals.TotalAmount),
	}
}
