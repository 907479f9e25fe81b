// Package settlement implements upload, listing, pivot and export of settlement rows.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/csoportal/internal/bizno"
	"github.com/jon4hz/csoportal/internal/columnmap"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/excel"
	"github.com/jon4hz/csoportal/internal/pivot"
	"github.com/samber/lo"
)

// previewRows is the number of data rows returned by Preview.
const previewRows = 5

var (
	ErrInvalidMonth     = errors.New("settlement month must be formatted as YYYY-MM")
	ErrNoRows           = errors.New("sheet contains no importable rows")
	ErrNoBusinessNumber = errors.New("viewer has no business number")
)

// ColumnProvider returns the column settings in display order.
type ColumnProvider interface {
	Columns(ctx context.Context) ([]database.ColumnSetting, error)
	VisibleColumns(ctx context.Context) ([]database.ColumnSetting, error)
}

// Viewer is the account a query runs for.
type Viewer struct {
	BusinessNumber string
	Admin          bool
}

// Service implements the settlement operations.
type Service struct {
	db      database.DB
	columns ColumnProvider
	matcher *columnmap.Matcher
}

func New(db database.DB, columns ColumnProvider, matcher *columnmap.Matcher) *Service {
	if matcher == nil {
		matcher = columnmap.New(columnmap.DefaultThreshold)
	}
	return &Service{db: db, columns: columns, matcher: matcher}
}

// ValidMonth reports whether month is formatted as YYYY-MM.
func ValidMonth(month string) bool {
	_, err := time.Parse("2006-01", month)
	return err == nil
}

// Preview is the result of inspecting an upload before importing it.
type Preview struct {
	SheetName string                   `json:"sheetName"`
	HeaderRow int                      `json:"headerRow"`
	Headers   []string                 `json:"headers"`
	Mapping   *columnmap.Result        `json:"mapping"`
	Rows      [][]string               `json:"rows"`
	TotalRows int                      `json:"totalRows"`
	Fields    []database.ColumnSetting `json:"fields"`
	// Error is set when the mapping cannot be imported as is.
	Error string `json:"error,omitempty"`
}

// Preview reads an upload and proposes a header mapping.
func (s *Service) Preview(ctx context.Context, r io.Reader, overrides map[string]string) (*Preview, error) {
	sheet, err := excel.ReadSheet(r)
	if err != nil {
		return nil, err
	}
	mapping, err := s.matcher.MapWithOverrides(sheet.Headers, overrides)
	if err != nil {
		return nil, err
	}
	fields, err := s.columns.Columns(ctx)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		SheetName: sheet.Name,
		HeaderRow: sheet.HeaderRow,
		Headers:   sheet.Headers,
		Mapping:   mapping,
		TotalRows: len(sheet.Rows),
		Fields:    fields,
		Rows: lo.Map(lo.Slice(sheet.Rows, 0, previewRows), func(row excel.Row, _ int) []string {
			return lo.Times(len(sheet.Headers), row.Cell)
		}),
	}
	if err := mapping.Validate(); err != nil {
		preview.Error = err.Error()
	}
	return preview, nil
}

// ImportResult summarizes an import.
type ImportResult struct {
	Month    string             `json:"month"`
	Inserted int                `json:"inserted"`
	Replaced int64              `json:"replaced"`
	Skipped  []excel.SkippedRow `json:"skipped"`
	Mapping  *columnmap.Result  `json:"mapping"`
}

// Import replaces all rows of month with the rows of the upload.
// Importing the same file twice leaves the same rows behind.
func (s *Service) Import(ctx context.Context, r io.Reader, month string, overrides map[string]string) (*ImportResult, error) {
	month = strings.TrimSpace(month)
	if !ValidMonth(month) {
		return nil, ErrInvalidMonth
	}

	sheet, err := excel.ReadSheet(r)
	if err != nil {
		return nil, err
	}
	mapping, err := s.matcher.MapWithOverrides(sheet.Headers, overrides)
	if err != nil {
		return nil, err
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}

	parsed := excel.ParseSettlements(sheet, mapping.Fields(), month)
	if len(parsed.Settlements) == 0 {
		return nil, fmt.Errorf("%w (%d rows skipped)", ErrNoRows, len(parsed.Skipped))
	}

	replaced, err := s.db.ReplaceSettlementMonth(ctx, month, parsed.Settlements)
	if err != nil {
		return nil, fmt.Errorf("failed to store settlements: %w", err)
	}
	log.Info("imported settlements",
		"month", month,
		"inserted", len(parsed.Settlements),
		"replaced", replaced,
		"skipped", len(parsed.Skipped),
	)

	return &ImportResult{
		Month:    month,
		Inserted: len(parsed.Settlements),
		Replaced: replaced,
		Skipped:  parsed.Skipped,
		Mapping:  mapping,
	}, nil
}

// DeleteMonth removes all rows of a month.
func (s *Service) DeleteMonth(ctx context.Context, month string) (int64, error) {
	if !ValidMonth(month) {
		return 0, ErrInvalidMonth
	}
	return s.db.DeleteSettlementMonth(ctx, month)
}

// MonthList is the list of months together with the columns the viewer may see.
type MonthList struct {
	Columns []database.ColumnSetting
	Months  []database.MonthSummary
}

// Months lists the months with data visible to the viewer. The commission sum is
// zeroed when the viewer may not see the commission column.
func (s *Service) Months(ctx context.Context, viewer Viewer) (*MonthList, error) {
	if !viewer.Admin && viewer.BusinessNumber == "" {
		return nil, ErrNoBusinessNumber
	}
	columns, err := s.columnsFor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	businessNumber := ""
	if !viewer.Admin {
		businessNumber = viewer.BusinessNumber
	}
	months, err := s.db.ListSettlementMonths(ctx, businessNumber)
	if err != nil {
		return nil, err
	}
	if lo.Contains(hiddenTotals(columns), database.FieldCommissionAmount) {
		for i := range months {
			months[i].CommissionAmount = 0
		}
	}
	return &MonthList{Columns: columns, Months: months}, nil
}

// Query selects settlement rows.
type Query struct {
	Month string
	// BusinessNumber is only honored for admins.
	BusinessNumber string
	Search         string
}

// filter turns a query into a storage filter. Non-admins are always pinned to their
// own business number.
func (q Query) filter(viewer Viewer) (database.SettlementFilter, error) {
	month := strings.TrimSpace(q.Month)
	if month != "" && !ValidMonth(month) {
		return database.SettlementFilter{}, ErrInvalidMonth
	}
	f := database.SettlementFilter{Month: month, Search: q.Search}
	if viewer.Admin {
		f.BusinessNumber = bizno.Normalize(q.BusinessNumber)
	} else {
		f.BusinessNumber = viewer.BusinessNumber
	}
	return f, nil
}

// Table is a list of rows together with the columns the viewer may see.
type Table struct {
	Columns []database.ColumnSetting
	Rows    []database.Settlement
	Totals  pivot.Totals
}

// List returns the settlement rows matching q.
func (s *Service) List(ctx context.Context, viewer Viewer, q Query) (*Table, error) {
	rows, columns, err := s.load(ctx, viewer, q)
	if err != nil {
		return nil, err
	}
	var totals pivot.Totals
	for i := range rows {
		totals.Add(&rows[i])
	}
	totals.Hide(hiddenTotals(columns)...)
	return &Table{Columns: columns, Rows: rows, Totals: totals}, nil
}

// PivotTable is a grouped report together with the visible columns.
type PivotTable struct {
	Columns []database.ColumnSetting
	Report  *pivot.Report
}

// Pivot groups the rows matching q by CSO and customer.
func (s *Service) Pivot(ctx context.Context, viewer Viewer, q Query) (*PivotTable, error) {
	rows, columns, err := s.load(ctx, viewer, q)
	if err != nil {
		return nil, err
	}
	report := pivot.Build(rows)
	report.Hide(hiddenTotals(columns)...)
	return &PivotTable{Columns: columns, Report: report}, nil
}

// Export writes the rows matching q as xlsx and returns a file name for the download.
func (s *Service) Export(ctx context.Context, viewer Viewer, q Query, withSubtotals bool, w io.Writer) (string, error) {
	rows, columns, err := s.load(ctx, viewer, q)
	if err != nil {
		return "", err
	}
	cols := lo.Map(columns, func(c database.ColumnSetting, _ int) excel.Column {
		return excel.Column{Key: c.ColumnKey, Title: c.DisplayName}
	})
	if err := excel.WriteSettlements(w, cols, rows, withSubtotals); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return exportFilename(viewer, q), nil
}

func exportFilename(viewer Viewer, q Query) string {
	parts := []string{"settlements"}
	if m := strings.TrimSpace(q.Month); m != "" {
		parts = append(parts, m)
	}
	if !viewer.Admin {
		parts = append(parts, viewer.BusinessNumber)
	} else if bn := bizno.Normalize(q.BusinessNumber); bn != "" {
		parts = append(parts, bn)
	}
	return strings.Join(parts, "_") + ".xlsx"
}

// columnsFor returns every column for admins and the visible ones for everybody else.
func (s *Service) columnsFor(ctx context.Context, viewer Viewer) ([]database.ColumnSetting, error) {
	if viewer.Admin {
		return s.columns.Columns(ctx)
	}
	return s.columns.VisibleColumns(ctx)
}

// hiddenTotals returns the summed columns that are not among columns.
func hiddenTotals(columns []database.ColumnSetting) []string {
	keys := lo.Map(columns, func(c database.ColumnSetting, _ int) string { return c.ColumnKey })
	return lo.Without(pivot.TotalFields, keys...)
}

func (s *Service) load(ctx context.Context, viewer Viewer, q Query) ([]database.Settlement, []database.ColumnSetting, error) {
	if !viewer.Admin && viewer.BusinessNumber == "" {
		return nil, nil, ErrNoBusinessNumber
	}
	filter, err := q.filter(viewer)
	if err != nil {
		return nil, nil, err
	}
	columns, err := s.columnsFor(ctx, viewer)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.db.ListSettlements(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return rows, columns, nil
}
