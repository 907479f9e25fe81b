// Package excel reads settlement spreadsheets and writes settlement exports.
package excel

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/jon4hz/csoportal/internal/bizno"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/xuri/excelize/v2"
)

// headerSearchRows is how many leading rows are searched for the header row.
const headerSearchRows = 10

var (
	// ErrNoSheet is returned for workbooks without any worksheet.
	ErrNoSheet = errors.New("workbook has no sheets")
	// ErrNoHeader is returned when no header row could be found.
	ErrNoHeader = errors.New("no header row found")
	// ErrInvalidWorkbook is returned when the upload is not a readable xlsx file.
	ErrInvalidWorkbook = errors.New("not a valid xlsx workbook")
)

// Sheet is the content of an uploaded worksheet.
type Sheet struct {
	Name string
	// HeaderRow is the 1-based row number of the header.
	HeaderRow int
	Headers   []string
	Rows      []Row
}

// Row is a data row below the header.
type Row struct {
	// Number is the 1-based row number in the sheet.
	Number int
	Cells  []string
}

// Cell returns the trimmed value at index i, or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[i])
}

// ReadSheet reads the first worksheet of an xlsx workbook. The header is the first
// row with at least two non-empty cells within the leading rows, empty rows below it
// are dropped.
func ReadSheet(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}
	name := sheets[0]

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	header := -1
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		if countNonEmpty(rows[i]) >= 2 {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, ErrNoHeader
	}

	sheet := &Sheet{
		Name:      name,
		HeaderRow: header + 1,
		Headers:   make([]string, len(rows[header])),
	}
	for i, h := range rows[header] {
		sheet.Headers[i] = strings.TrimSpace(h)
	}
	for i := header + 1; i < len(rows); i++ {
		if countNonEmpty(rows[i]) == 0 {
			continue
		}
		sheet.Rows = append(sheet.Rows, Row{Number: i + 1, Cells: rows[i]})
	}
	return sheet, nil
}

func countNonEmpty(cells []string) int {
	n := 0
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

// SkippedRow is a data row that could not be imported.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ParseResult holds the settlements parsed from a sheet.
type ParseResult struct {
	Settlements []database.Settlement
	Skipped     []SkippedRow
}

// ParseSettlements converts the data rows of a sheet using a header index to field mapping.
// Rows without a valid business number or with malformed numbers are skipped and reported.
func ParseSettlements(sheet *Sheet, mapping map[int]string, month string) *ParseResult {
	res := &ParseResult{Settlements: make([]database.Settlement, 0, len(sheet.Rows))}
	columns := slices.Sorted(maps.Keys(mapping))

	for _, row := range sheet.Rows {
		s := database.Settlement{SettlementMonth: month, SourceRow: row.Number}
		var reason string
		for _, idx := range columns {
			field := mapping[idx]
			if err := setField(&s, field, row.Cell(idx)); err != nil {
				reason = fmt.Sprintf("%s: %v", field, err)
				break
			}
		}
		if reason == "" {
			switch {
			case s.BusinessNumber == "":
				reason = "missing business number"
			case len(s.BusinessNumber) != bizno.Length:
				reason = fmt.Sprintf("invalid business number %q", row.Cell(indexOf(mapping, database.FieldBusinessNumber)))
			}
		}
		if reason != "" {
			res.Skipped = append(res.Skipped, SkippedRow{Row: row.Number, Reason: reason})
			continue
		}
		res.Settlements = append(res.Settlements, s)
	}
	return res
}

func indexOf(mapping map[int]string, field string) int {
	for idx, f := range mapping {
		if f == field {
			return idx
		}
	}
	return -1
}

func setField(s *database.Settlement, field, value string) error {
	if database.IsNumericField(field) {
		n, err := ParseNumber(value)
		if err != nil {
			return err
		}
		switch field {
		case database.FieldQuantity:
			s.Quantity = n
		case database.FieldUnitPrice:
			s.UnitPrice = n
		case database.FieldPrescriptionAmount:
			s.PrescriptionAmount = n
		case database.FieldCommissionRate:
			s.CommissionRate = n
		case database.FieldCommissionAmount:
			s.CommissionAmount = n
		}
		return nil
	}

	switch field {
	case database.FieldBusinessNumber:
		s.BusinessNumber = bizno.Normalize(value)
	case database.FieldCSOName:
		s.CSOName = value
	case database.FieldCustomerCode:
		s.CustomerCode = value
	case database.FieldCustomerName:
		s.CustomerName = value
	case database.FieldProductCode:
		s.ProductCode = value
	case database.FieldProductName:
		s.ProductName = value
	case database.FieldNote:
		s.Note = value
	}
	return nil
}

// ParseNumber parses a spreadsheet number. Thousands separators, currency signs,
// a trailing percent sign and accounting style negatives like (1,200) are accepted.
// Empty cells and a lone dash are zero.
func ParseNumber(value string) (float64, error) {
	v := strings.TrimSpace(value)
	if v == "" || v == "-" {
		return 0, nil
	}

	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	v = strings.TrimSuffix(v, "%")
	v = strings.NewReplacer(",", "", "₩", "", "원", "", " ", "").Replace(v)

	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	if negative {
		n = -n
	}
	return n, nil
}
