package report

import (
	"encoding/csv"
	"html/template"
	"io"
	"strconv"
)

type CSVRenderer struct{}

func (CSVRenderer) Format() string      { return "csv" }
func (CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVRenderer) Render(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"no", "date", "outlet", "kasir", "payment_method", "amount"},
	}
	for _, row := range doc.Rows {
		records = append(records, []string{
			strconv.Itoa(row.Index),
			row.Date,
			row.OutletName,
			row.KasirName,
			row.PaymentMethod,
			strconv.FormatFloat(row.AmountValue, 'f', -1, 64),
		})
	}
	records = append(records, []string{
		"", "", "", "", "total",
		strconv.FormatFloat(doc.Totals.TotalAmount, 'f', -1, 64),
	})
	return cw.WriteAll(records)
}

// salesReportHTMLTmpl renders a printable page. html/template escapes every
// name coming from merchant data.
var salesReportHTMLTmpl = template.Must(template.New("sales-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    thead { display: table-header-group; }
    h2 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>{{.Title}}</h2>
  <p>Outlet: {{.OutletLabel}}</p>
  <p>Period: {{.DateRangeLabel}}</p>
  <p>Generated: {{.GeneratedAt}}</p>
  <table>
    <thead><tr><th>No</th><th>Date</th><th>Outlet</th><th>Kasir</th><th>Payment</th><th>Amount</th></tr></thead>
    <tbody>{{range .Rows}}<tr><td>{{.Index}}</td><td>{{.Date}}</td><td>{{.OutletName}}</td><td>{{.KasirName}}</td><td>{{.PaymentMethod}}</td><td style="text-align:right;">{{.Amount}}</td></tr>{{end}}</tbody>
    <tfoot><tr><th colspan="5" style="text-align:right;">Total ({{.Totals.Count}} transactions)</th><th style="text-align:right;">{{.TotalLabel}}</th></tr></tfoot>
  </table>
</body>
</html>
`))

type HTMLRenderer struct{}

func (HTMLRenderer) Format() string      { return "html" }
func (HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }

func (HTMLRenderer) Render(w io.Writer, doc Document) error {
	return salesReportHTMLTmpl.Execute(w, doc)
}
