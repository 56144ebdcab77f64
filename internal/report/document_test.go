package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/poserr"
)

func sampleDocument(t *testing.T) Document {
	t.Helper()
	txs := []domain.Transaction{
		{ID: "t2", MerchantID: "m1", OutletID: "A", OutletName: "Old Name", KasirID: "k1", KasirName: "Sari", PaymentMethod: domain.PaymentQRIS, TotalAmount: 45000, Timestamp: day(2, 10)},
		{ID: "t1", MerchantID: "m1", OutletID: "Z", OutletName: "Cabang Lama", KasirID: "k9", PaymentMethod: domain.PaymentCash, TotalAmount: 37962, Timestamp: day(1, 8)},
	}
	dir := Directory{
		Outlets: map[string]string{"A": "Outlet Pusat"},
		Kasirs:  map[string]string{"k1": "Sari Dewi"},
	}
	desc := Describe(Filter{From: ptr(day(1, 0)), To: ptr(day(3, 0))}, adminSession(), dir, day(4, 9), jakarta)
	return BuildDocument(txs, Aggregate(txs), desc, dir)
}

func TestBuildDocumentResolvesNames(t *testing.T) {
	doc := sampleDocument(t)

	require.Len(t, doc.Rows, 2)
	first, second := doc.Rows[0], doc.Rows[1]

	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "02/01/2026 10:00", first.Date)
	assert.Equal(t, "Outlet Pusat", first.OutletName)
	assert.Equal(t, "Sari Dewi", first.KasirName)
	assert.Equal(t, "QRIS", first.PaymentMethod)
	assert.True(t, strings.HasPrefix(first.Amount, "Rp "), first.Amount)

	assert.Equal(t, 2, second.Index)
	assert.Equal(t, "Cabang Lama", second.OutletName)
	assert.Equal(t, "N/A", second.KasirName)
	assert.Equal(t, "Cash", second.PaymentMethod)

	assert.Equal(t, "Sales Report", doc.Title)
	assert.Equal(t, "All outlets", doc.OutletLabel)
	assert.Equal(t, "01/01/2026 - 03/01/2026", doc.DateRangeLabel)
	assert.Equal(t, "04/01/2026 09:00", doc.GeneratedAt)
	assert.Equal(t, Totals{Count: 2, TotalAmount: 82962}, doc.Totals)
}

func TestBuildDocumentEmpty(t *testing.T) {
	doc := BuildDocument(nil, Aggregate(nil), Describe(Filter{}, adminSession(), Directory{}, day(4, 9), jakarta), Directory{})
	assert.NotNil(t, doc.Rows)
	assert.Empty(t, doc.Rows)
	assert.Equal(t, "All dates", doc.DateRangeLabel)
}

func TestDescribeKasirOutletLabel(t *testing.T) {
	dir := Directory{Outlets: map[string]string{"A": "Outlet Pusat"}}
	kasir := domain.Session{Role: domain.RoleKasir, MerchantID: "m1", OutletIDs: []string{"A"}}

	assert.Equal(t, "Outlet Pusat", Describe(Filter{}, kasir, dir, day(1, 0), jakarta).OutletLabel)
	assert.Equal(t, "Outlet Pusat", Describe(Filter{OutletID: "A"}, adminSession(), dir, day(1, 0), jakarta).OutletLabel)
}

func TestDescribeIgnoresOutletOutsideKasirScope(t *testing.T) {
	dir := Directory{Outlets: map[string]string{"A": "Outlet Pusat", "B": "Outlet Cabang"}}
	kasir := domain.Session{Role: domain.RoleKasir, MerchantID: "m1", OutletIDs: []string{"A"}}

	label := Describe(Filter{OutletID: "B"}, kasir, dir, day(1, 0), jakarta).OutletLabel
	assert.Equal(t, "Outlet Pusat", label)
	assert.NotContains(t, label, "Cabang")

	multi := domain.Session{Role: domain.RoleKasir, MerchantID: "m1", OutletIDs: []string{"A", "C"}}
	assert.Equal(t, "Assigned outlets", Describe(Filter{OutletID: "B"}, multi, dir, day(1, 0), jakarta).OutletLabel)
	assert.Equal(t, "Outlet Pusat", Describe(Filter{OutletID: "A"}, multi, dir, day(1, 0), jakarta).OutletLabel)
}

func TestExportRefusesEmptyDocument(t *testing.T) {
	var out bytes.Buffer
	err := Export(&out, Document{}, PDFRenderer{})

	require.ErrorIs(t, err, ErrNoData)
	assert.True(t, poserr.IsValidation(err))
	assert.Zero(t, out.Len())
}

type brokenRenderer struct{}

func (brokenRenderer) Format() string      { return "broken" }
func (brokenRenderer) ContentType() string { return "text/plain" }
func (brokenRenderer) Render(w io.Writer, _ Document) error {
	_, _ = w.Write([]byte("half a document"))
	return errors.New("font missing")
}

func TestExportLeavesNoPartialOutput(t *testing.T) {
	var out bytes.Buffer
	err := Export(&out, sampleDocument(t), brokenRenderer{})

	require.Error(t, err)
	assert.True(t, poserr.IsExport(err))
	assert.Zero(t, out.Len())
}

func TestRenderers(t *testing.T) {
	doc := sampleDocument(t)

	t.Run("pdf", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Export(&out, doc, PDFRenderer{}))
		assert.True(t, bytes.HasPrefix(out.Bytes(), []byte("%PDF")))
	})

	t.Run("pdf paginates", func(t *testing.T) {
		big := doc
		big.Rows = nil
		for i := 0; i < 120; i++ {
			row := doc.Rows[0]
			row.Index = i + 1
			big.Rows = append(big.Rows, row)
		}
		var out bytes.Buffer
		require.NoError(t, Export(&out, big, PDFRenderer{}))
		pages := bytes.Count(out.Bytes(), []byte("/Type /Page")) - bytes.Count(out.Bytes(), []byte("/Type /Pages"))
		assert.Greater(t, pages, 1)
	})

	t.Run("xlsx", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Export(&out, doc, XLSXRenderer{}))
		assert.True(t, bytes.HasPrefix(out.Bytes(), []byte("PK")))
	})

	t.Run("csv", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, Export(&out, doc, CSVRenderer{}))
		records, err := csv.NewReader(&out).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, []string{"no", "date", "outlet", "kasir", "payment_method", "amount"}, records[0])
		assert.Equal(t, "Outlet Pusat", records[1][2])
		assert.Equal(t, "45000", records[1][5])
		assert.Equal(t, "82962", records[3][5])
	})

	t.Run("html escapes names", func(t *testing.T) {
		evil := doc
		evil.Rows = append([]Row(nil), doc.Rows...)
		evil.Rows[0].OutletName = "<script>alert(1)</script>"
		var out bytes.Buffer
		require.NoError(t, Export(&out, evil, HTMLRenderer{}))
		assert.NotContains(t, out.String(), "<script>alert(1)</script>")
		assert.Contains(t, out.String(), "&lt;script&gt;")
	})
}

func TestRendererFor(t *testing.T) {
	for format, want := range map[string]string{"": "pdf", "PDF": "pdf", "xlsx": "xlsx", "excel": "xlsx", "csv": "csv", "html": "html"} {
		r, err := RendererFor(format)
		require.NoError(t, err)
		assert.Equal(t, want, r.Format())
	}
	_, err := RendererFor("docx")
	assert.True(t, poserr.IsValidation(err))

	r, _ := RendererFor("pdf")
	assert.Equal(t, "sales-report-20260104-090000.pdf", Filename(r, time.Date(2026, 1, 4, 9, 0, 0, 0, time.UTC)))
}

func TestBuildReceipt(t *testing.T) {
	tx := domain.Transaction{
		ID:            "trx-1",
		OutletID:      "A",
		KasirID:       "k1",
		KasirName:     "Sari",
		PaymentMethod: domain.PaymentCash,
		Items: []domain.TransactionLine{
			{ProductID: "p1", Name: "Kopi Susu", UnitPrice: 18000, Quantity: 2, LineTotal: 36000},
		},
		Subtotal:       36000,
		DiscountAmount: 1800,
		TaxAmount:      3762,
		TotalAmount:    37962,
		CashReceived:   40000,
		ChangeGiven:    2038,
		Timestamp:      day(1, 8),
	}

	r := BuildReceipt(tx, Directory{Outlets: map[string]string{"A": "Outlet Pusat"}}, jakarta)
	assert.Equal(t, "Outlet Pusat", r.OutletName)
	assert.Equal(t, "Sari", r.KasirName)
	require.Len(t, r.Lines, 1)
	assert.Equal(t, 2, r.Lines[0].Quantity)
	assert.NotEmpty(t, r.Change)

	tx.PaymentMethod = domain.PaymentQRIS
	assert.Empty(t, BuildReceipt(tx, Directory{}, jakarta).Change)
}
