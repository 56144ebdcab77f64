package report

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Sales"

// XLSXRenderer writes one sheet: labels, a frozen header row, one row per
// transaction and a total row. Amounts are numeric cells.
type XLSXRenderer struct{}

func (XLSXRenderer) Format() string { return "xlsx" }
func (XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXRenderer) Render(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "bold style")
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E6E6E6"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "header style")
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return errors.Wrap(err, "amount style")
	}

	set := func(col, row int, value any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(xlsxSheet, cell, value)
	}

	labels := [][2]string{
		{doc.Title, ""},
		{"Outlet", doc.OutletLabel},
		{"Period", doc.DateRangeLabel},
		{"Generated", doc.GeneratedAt},
	}
	for i, label := range labels {
		if err := set(1, i+1, label[0]); err != nil {
			return err
		}
		if label[1] != "" {
			if err := set(2, i+1, label[1]); err != nil {
				return err
			}
		}
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", "A1", boldStyle); err != nil {
		return err
	}

	headerRow := len(labels) + 2
	headers := []string{"No", "Date", "Outlet", "Kasir", "Payment", "Amount"}
	for i, h := range headers {
		if err := set(i+1, headerRow, h); err != nil {
			return err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(headers), headerRow)
	if err := f.SetCellStyle(xlsxSheet, first, last, headerStyle); err != nil {
		return err
	}

	row := headerRow
	for _, r := range doc.Rows {
		row++
		values := []any{r.Index, r.Date, r.OutletName, r.KasirName, r.PaymentMethod, r.AmountValue}
		for i, v := range values {
			if err := set(i+1, row, v); err != nil {
				return err
			}
		}
	}
	if len(doc.Rows) > 0 {
		top, _ := excelize.CoordinatesToCellName(len(headers), headerRow+1)
		bottom, _ := excelize.CoordinatesToCellName(len(headers), row)
		if err := f.SetCellStyle(xlsxSheet, top, bottom, amountStyle); err != nil {
			return err
		}
	}

	row++
	if err := set(len(headers)-1, row, "TOTAL"); err != nil {
		return err
	}
	if err := set(len(headers), row, doc.Totals.TotalAmount); err != nil {
		return err
	}
	totalLabel, _ := excelize.CoordinatesToCellName(len(headers)-1, row)
	totalCell, _ := excelize.CoordinatesToCellName(len(headers), row)
	if err := f.SetCellStyle(xlsxSheet, totalLabel, totalCell, boldStyle); err != nil {
		return err
	}

	if err := f.SetColWidth(xlsxSheet, "B", "E", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(xlsxSheet, "F", "F", 18); err != nil {
		return err
	}
	if err := f.SetPanes(xlsxSheet, &excelize.Panes{Freeze: true, Split: true, YSplit: headerRow}); err != nil {
		return err
	}

	return f.Write(w)
}
