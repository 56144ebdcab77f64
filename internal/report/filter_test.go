package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
)

var jakarta = time.FixedZone("WIB", 7*60*60)

func day(d int, hour int) time.Time {
	return time.Date(2026, time.January, d, hour, 0, 0, 0, jakarta)
}

func ptr(t time.Time) *time.Time { return &t }

func adminSession() domain.Session {
	return domain.Session{UID: "admin-1", Role: domain.RoleAdmin, MerchantID: "m1"}
}

func sampleTransactions() []domain.Transaction {
	return []domain.Transaction{
		{ID: "t6", MerchantID: "m1", OutletID: "B", KasirID: "k2", PaymentMethod: domain.PaymentQRIS, TotalAmount: 12000, Timestamp: day(6, 9)},
		{ID: "t5", MerchantID: "m1", OutletID: "A", KasirID: "k1", PaymentMethod: domain.PaymentCash, TotalAmount: 30000, Timestamp: day(5, 15)},
		{ID: "t4", MerchantID: "m2", OutletID: "X", KasirID: "k9", PaymentMethod: domain.PaymentCash, TotalAmount: 99000, Timestamp: day(4, 11)},
		{ID: "t3", MerchantID: "m1", OutletID: "B", KasirID: "k2", PaymentMethod: domain.PaymentCash, TotalAmount: 8000, Timestamp: day(3, 20)},
		{ID: "t2", MerchantID: "m1", OutletID: "A", KasirID: "k3", PaymentMethod: domain.PaymentCard, TotalAmount: 45000, Timestamp: day(2, 10)},
		{ID: "t1", MerchantID: "m1", OutletID: "A", KasirID: "k1", PaymentMethod: domain.PaymentCash, TotalAmount: 37962, Timestamp: day(1, 8)},
	}
}

func ids(txs []domain.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}

func TestDateFilterExample(t *testing.T) {
	txs := []domain.Transaction{
		{ID: "jan1", MerchantID: "m1", OutletID: "A", TotalAmount: 25000, Timestamp: day(1, 10)},
		{ID: "jan5", MerchantID: "m1", OutletID: "B", TotalAmount: 40000, Timestamp: day(5, 10)},
	}

	got := ApplyFilters(txs, Filter{From: ptr(day(1, 0)), To: ptr(day(3, 0))}, adminSession())

	assert.Equal(t, []string{"jan1"}, ids(got))
	assert.Equal(t, Totals{Count: 1, TotalAmount: 25000}, Aggregate(got))
}

func TestToBoundIncludesWholeDay(t *testing.T) {
	txs := []domain.Transaction{
		{ID: "late", MerchantID: "m1", Timestamp: time.Date(2026, 1, 3, 23, 59, 59, int(500*time.Millisecond), jakarta)},
		{ID: "next", MerchantID: "m1", Timestamp: time.Date(2026, 1, 4, 0, 0, 0, 0, jakarta)},
		{ID: "start", MerchantID: "m1", Timestamp: day(2, 0)},
		{ID: "before", MerchantID: "m1", Timestamp: day(2, 0).Add(-time.Nanosecond)},
	}

	got := ApplyFilters(txs, Filter{From: ptr(day(2, 0)), To: ptr(day(3, 12))}, adminSession())
	assert.Equal(t, []string{"late", "start"}, ids(got))
}

func TestSentinelAllDisablesDimension(t *testing.T) {
	txs := sampleTransactions()
	all := ApplyFilters(txs, Filter{OutletID: "all", KasirID: "all", PaymentMethod: "all"}, adminSession())
	none := ApplyFilters(txs, Filter{}, adminSession())

	assert.Equal(t, []string{"t6", "t5", "t3", "t2", "t1"}, ids(all))
	assert.Equal(t, ids(none), ids(all))
}

func TestFiltersCombineWithAndAndPreserveOrder(t *testing.T) {
	got := ApplyFilters(sampleTransactions(), Filter{
		OutletID:      "A",
		KasirID:       "k1",
		PaymentMethod: "cash",
	}, adminSession())

	assert.Equal(t, []string{"t5", "t1"}, ids(got))
}

func TestApplyFiltersDoesNotMutateInput(t *testing.T) {
	txs := sampleTransactions()
	before := ids(txs)

	_ = ApplyFilters(txs, Filter{OutletID: "B"}, adminSession())
	assert.Equal(t, before, ids(txs))
}

func TestPredicateOrderIsIrrelevant(t *testing.T) {
	txs := sampleTransactions()
	filter := Filter{
		From:          ptr(day(2, 0)),
		To:            ptr(day(6, 0)),
		OutletID:      "B",
		KasirID:       "k2",
		PaymentMethod: "cash",
	}
	preds := Predicates(filter, adminSession())
	require.Len(t, preds, 6)

	want := ids(Select(txs, preds...))
	permute(preds, func(order []Predicate) {
		got := txs
		for _, p := range order {
			got = Select(got, p)
		}
		assert.Equal(t, want, ids(got))
	})
}

func permute(preds []Predicate, visit func([]Predicate)) {
	var rec func(int)
	rec = func(k int) {
		if k == len(preds) {
			visit(preds)
			return
		}
		for i := k; i < len(preds); i++ {
			preds[k], preds[i] = preds[i], preds[k]
			rec(k + 1)
			preds[k], preds[i] = preds[i], preds[k]
		}
	}
	rec(0)
}

func TestKasirNeverSeesOtherOutlets(t *testing.T) {
	kasir := domain.Session{UID: "k1", Role: domain.RoleKasir, MerchantID: "m1", OutletIDs: []string{"A"}}

	for _, filter := range []Filter{
		{},
		{OutletID: "B"},
		{OutletID: "X"},
		{OutletID: "all"},
		{KasirID: "k2"},
		{OutletID: "B", KasirID: "k2", PaymentMethod: "qris"},
	} {
		got := ApplyFilters(sampleTransactions(), filter, kasir)
		for _, tx := range got {
			assert.Equal(t, "A", tx.OutletID, "filter %+v leaked %s", filter, tx.ID)
		}
	}

	// The kasir dimension is ignored for kasirs: other kasirs at the same
	// outlet stay visible.
	got := ApplyFilters(sampleTransactions(), Filter{KasirID: "k1"}, kasir)
	assert.Equal(t, []string{"t5", "t2", "t1"}, ids(got))
}

func TestKasirWithSeveralOutletsCanNarrow(t *testing.T) {
	kasir := domain.Session{UID: "k2", Role: domain.RoleKasir, MerchantID: "m1", OutletIDs: []string{"A", "B"}}

	assert.Equal(t, []string{"t6", "t3"}, ids(ApplyFilters(sampleTransactions(), Filter{OutletID: "B"}, kasir)))
	assert.Len(t, ApplyFilters(sampleTransactions(), Filter{}, kasir), 5)

	unassigned := domain.Session{UID: "k4", Role: domain.RoleKasir, MerchantID: "m1"}
	assert.Empty(t, ApplyFilters(sampleTransactions(), Filter{}, unassigned))
}

func TestMerchantScope(t *testing.T) {
	root := domain.Session{UID: "root", Role: domain.RoleSuperAdmin}
	assert.Len(t, ApplyFilters(sampleTransactions(), Filter{}, root), 6)

	other := domain.Session{UID: "a2", Role: domain.RoleAdmin, MerchantID: "m2"}
	assert.Equal(t, []string{"t4"}, ids(ApplyFilters(sampleTransactions(), Filter{}, other)))
}

func TestAggregateEmpty(t *testing.T) {
	assert.Equal(t, Totals{}, Aggregate(nil))
	assert.Equal(t, Totals{}, Aggregate([]domain.Transaction{}))
}

func TestSummarizeBreakdowns(t *testing.T) {
	txs := ApplyFilters(sampleTransactions(), Filter{}, adminSession())
	dir := Directory{Outlets: map[string]string{"A": "Outlet Pusat"}}

	s := Summarize(txs, dir)

	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 132962.0, s.TotalAmount)
	require.Len(t, s.ByOutlet, 2)
	assert.Equal(t, Bucket{Key: "A", Label: "Outlet Pusat", Count: 3, TotalAmount: 112962}, s.ByOutlet[0])
	assert.Equal(t, "N/A", s.ByOutlet[1].Label)
	require.Len(t, s.ByPayment, 3)
	assert.Equal(t, domain.PaymentCash, s.ByPayment[0].Key)
	assert.Equal(t, 3, s.ByPayment[0].Count)
}
