// Package report filters, aggregates and renders sales transactions.
package report

import (
	"strings"
	"time"

	"kasirpos/backend/internal/access"
	"kasirpos/backend/internal/domain"
)

// Filter selects transactions. Empty strings and "all" disable a dimension.
type Filter struct {
	From          *time.Time `json:"from,omitempty"`
	To            *time.Time `json:"to,omitempty"`
	OutletID      string     `json:"outlet_id,omitempty"`
	KasirID       string     `json:"kasir_id,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
}

func isActive(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && value != domain.FilterAll
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type Predicate func(tx domain.Transaction) bool

// Predicates returns the active filter predicates for the session. The
// scope predicate derived from the access policy is always present, so a
// kasir never sees another outlet whatever the requested filter says.
func Predicates(filter Filter, sess domain.Session) []Predicate {
	policy := access.For(sess)
	preds := []Predicate{
		func(tx domain.Transaction) bool {
			return access.MerchantVisible(policy, sess, tx.MerchantID) &&
				access.OutletVisible(policy, sess, tx.OutletID)
		},
	}

	if filter.From != nil {
		from := *filter.From
		preds = append(preds, func(tx domain.Transaction) bool {
			return !tx.Timestamp.Before(from)
		})
	}
	if filter.To != nil {
		to := EndOfDay(*filter.To)
		preds = append(preds, func(tx domain.Transaction) bool {
			return !tx.Timestamp.After(to)
		})
	}

	// A restricted caller asking for an outlet outside its scope keeps its
	// forced scope instead of the requested one.
	if isActive(filter.OutletID) && access.OutletVisible(policy, sess, filter.OutletID) {
		outletID := filter.OutletID
		preds = append(preds, func(tx domain.Transaction) bool {
			return tx.OutletID == outletID
		})
	}
	if isActive(filter.KasirID) && policy.CanFilterByKasir(sess) {
		kasirID := filter.KasirID
		preds = append(preds, func(tx domain.Transaction) bool {
			return tx.KasirID == kasirID
		})
	}
	if isActive(filter.PaymentMethod) {
		method := strings.ToLower(strings.TrimSpace(filter.PaymentMethod))
		preds = append(preds, func(tx domain.Transaction) bool {
			return tx.PaymentMethod == method
		})
	}
	return preds
}

// Select keeps the transactions matching every predicate, in input order.
// The input slice is not modified.
func Select(transactions []domain.Transaction, preds ...Predicate) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(transactions))
next:
	for _, tx := range transactions {
		for _, pred := range preds {
			if !pred(tx) {
				continue next
			}
		}
		out = append(out, tx)
	}
	return out
}

// ApplyFilters restricts transactions to what sess may see and then applies
// filter. Input order is preserved.
func ApplyFilters(transactions []domain.Transaction, filter Filter, sess domain.Session) []domain.Transaction {
	return Select(transactions, Predicates(filter, sess)...)
}
