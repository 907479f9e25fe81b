package excel

import (
	"fmt"
	"io"

	"github.com/jon4hz/csoportal/internal/bizno"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/pivot"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of xlsx workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the name of the exported worksheet.
const SheetName = "정산내역"

// Column is an exported column in display order.
type Column struct {
	Key   string
	Title string
}

type styles struct {
	header, subtotal, total, integer, decimal int
}

// WriteSettlements writes rows as an xlsx workbook with the given columns. With subtotals,
// rows are grouped by CSO and customer and followed by their subtotal lines.
func WriteSettlements(w io.Writer, columns []Column, rows []database.Settlement, withSubtotals bool) error {
	if len(columns) == 0 {
		return fmt.Errorf("no columns to export")
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}
	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.Title
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", st.header); err != nil {
		return err
	}

	for i, c := range columns {
		if !database.IsNumericField(c.Key) {
			continue
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		style := st.integer
		if c.Key == database.FieldCommissionRate || c.Key == database.FieldUnitPrice {
			style = st.decimal
		}
		if err := f.SetColStyle(SheetName, name, style); err != nil {
			return err
		}
	}

	var lines []pivot.Line
	if withSubtotals {
		lines = pivot.Build(rows).Lines()
	} else {
		lines = make([]pivot.Line, len(rows))
		for i := range rows {
			lines[i] = pivot.Line{Kind: pivot.LineRow, Row: &rows[i]}
		}
	}

	labelCol := labelColumn(columns)
	for i, line := range lines {
		rowNum := i + 2
		values := make([]any, len(columns))
		switch line.Kind {
		case pivot.LineRow:
			for ci, c := range columns {
				values[ci] = cellValue(line.Row, c.Key)
			}
		default:
			fillTotals(values, columns, line.Totals)
			if labelCol >= 0 {
				values[labelCol] = subtotalLabel(line)
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return err
		}

		style := 0
		switch line.Kind {
		case pivot.LineCustomerSubtotal, pivot.LineCSOSubtotal:
			style = st.subtotal
		case pivot.LineTotal:
			style = st.total
		}
		if style != 0 {
			if err := f.SetCellStyle(SheetName, cell, fmt.Sprintf("%s%d", lastCol, rowNum), style); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(SheetName, "A", lastCol, 16); err != nil {
		return err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func newStyles(f *excelize.File) (*styles, error) {
	var st styles
	var err error
	border := []excelize.Border{{Type: "bottom", Color: "#999999", Style: 1}}

	if st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Border:    border,
	}); err != nil {
		return nil, err
	}
	if st.subtotal, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#F2F2F2"}, Pattern: 1},
		NumFmt: 3,
	}); err != nil {
		return nil, err
	}
	if st.total, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
		NumFmt: 3,
		Border: border,
	}); err != nil {
		return nil, err
	}
	if st.integer, err = f.NewStyle(&excelize.Style{NumFmt: 3}); err != nil {
		return nil, err
	}
	if st.decimal, err = f.NewStyle(&excelize.Style{NumFmt: 4}); err != nil {
		return nil, err
	}
	return &st, nil
}

func cellValue(s *database.Settlement, key string) any {
	if key == database.FieldBusinessNumber {
		return bizno.Format(s.BusinessNumber)
	}
	return s.Value(key)
}

// labelColumn picks the first text column for subtotal labels.
func labelColumn(columns []Column) int {
	for i, c := range columns {
		if !database.IsNumericField(c.Key) {
			return i
		}
	}
	return -1
}

func fillTotals(values []any, columns []Column, t pivot.Totals) {
	for i, c := range columns {
		switch c.Key {
		case database.FieldQuantity:
			values[i] = t.Quantity
		case database.FieldPrescriptionAmount:
			values[i] = t.PrescriptionAmount
		case database.FieldCommissionAmount:
			values[i] = t.CommissionAmount
		}
	}
}

func subtotalLabel(line pivot.Line) string {
	switch line.Kind {
	case pivot.LineCustomerSubtotal:
		return line.CustomerName + " 소계"
	case pivot.LineCSOSubtotal:
		name := line.CSOName
		if name == "" {
			name = bizno.Format(line.BusinessNumber)
		}
		return name + " 합계"
	default:
		return "총계"
	}
}
