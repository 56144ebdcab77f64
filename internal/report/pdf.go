package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

type pdfColumn struct {
	title string
	width float64
	align string
}

var pdfColumns = []pdfColumn{
	{"No", 10, "C"},
	{"Date", 32, "L"},
	{"Outlet", 40, "L"},
	{"Kasir", 36, "L"},
	{"Payment", 28, "L"},
	{"Amount", 44, "R"},
}

// PDFRenderer lays out an A4 portrait report. The title block and the table
// header repeat on every page; the footer carries "Page N of M".
type PDFRenderer struct{}

func (PDFRenderer) Format() string      { return "pdf" }
func (PDFRenderer) ContentType() string { return "application/pdf" }

func (PDFRenderer) Render(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("kasirpos", true)
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, tr(doc.Title), "", 1, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 5, tr("Outlet: "+doc.OutletLabel), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr("Period: "+doc.DateRangeLabel), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr("Generated: "+doc.GeneratedAt), "", 1, "L", false, 0, "")
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range pdfColumns {
			pdf.CellFormat(col.width, 7, col.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range doc.Rows {
		cells := []string{
			fmt.Sprintf("%d", row.Index),
			row.Date,
			row.OutletName,
			row.KasirName,
			row.PaymentMethod,
			row.Amount,
		}
		for i, col := range pdfColumns {
			pdf.CellFormat(col.width, 6, tr(cells[i]), "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var labelWidth float64
	for _, col := range pdfColumns[:len(pdfColumns)-1] {
		labelWidth += col.width
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(labelWidth, 7, fmt.Sprintf("Total (%d transactions)", doc.Totals.Count), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[len(pdfColumns)-1].width, 7, tr(doc.TotalLabel), "1", 1, "R", false, 0, "")

	return pdf.Output(w)
}
