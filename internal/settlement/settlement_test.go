package settlement

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jon4hz/csoportal/internal/cache"
	"github.com/jon4hz/csoportal/internal/columnmap"
	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/settings"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
)

type SettlementTestSuite struct {
	suite.Suite
	db       *database.Client
	settings *settings.Service
	service  *Service
	ctx      context.Context
}

func (s *SettlementTestSuite) SetupTest() {
	db, err := database.New(":memory:")
	s.Require().NoError(err)
	s.db = db
	s.ctx = context.Background()
	s.settings = settings.New(db, cache.NewSettingsCache(&config.CacheConfig{Type: config.CacheTypeMemory, TTL: time.Minute}))
	s.service = New(db, s.settings, columnmap.New(columnmap.DefaultThreshold))
}

func (s *SettlementTestSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func TestSettlementTestSuite(t *testing.T) {
	suite.Run(t, new(SettlementTestSuite))
}

func (s *SettlementTestSuite) workbook(rows [][]any) *bytes.Buffer {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		s.Require().NoError(err)
		s.Require().NoError(f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	s.Require().NoError(err)
	return buf
}

func (s *SettlementTestSuite) upload() [][]any {
	return [][]any{
		{"사업자등록번호", "CSO명", "거래처코드", "거래처명", "제품명", "수량", "처방금액", "수수료율", "수수료금액", "담당자 메모"},
		{"123-45-67890", "메디팜", "C01", "서울병원", "타이레놀", 10, 100000, 10, 10000, ""},
		{"1234567890", "메디팜", "C02", "부산약국", "게보린", 5, 50000, 10, 5000, ""},
		{"2222222222", "헬스케어", "C01", "서울병원", "타이레놀", 1, 10000, 20, 2000, ""},
		{"", "", "", "합계", "", 16, 160000, "", 17000, ""},
	}
}

func (s *SettlementTestSuite) importUpload(month string) *ImportResult {
	result, err := s.service.Import(s.ctx, s.workbook(s.upload()), month, nil)
	s.Require().NoError(err)
	return result
}

func (s *SettlementTestSuite) TestPreview() {
	preview, err := s.service.Preview(s.ctx, s.workbook(s.upload()), nil)
	s.Require().NoError(err)

	s.Equal(1, preview.HeaderRow)
	s.Equal(4, preview.TotalRows)
	s.Len(preview.Rows, 4)
	s.Len(preview.Rows[0], len(preview.Headers))
	s.Empty(preview.Error)
	s.NotEmpty(preview.Fields)

	fields := preview.Mapping.Fields()
	s.Equal(database.FieldBusinessNumber, fields[0])
	s.Equal(database.FieldCommissionAmount, fields[8])
}

func (s *SettlementTestSuite) TestPreview_MissingBusinessNumber() {
	preview, err := s.service.Preview(s.ctx, s.workbook([][]any{
		{"거래처명", "처방금액"},
		{"서울병원", 1000},
	}), nil)
	s.Require().NoError(err)
	s.Equal(columnmap.ErrMissingBusinessNumber.Error(), preview.Error)
}

func (s *SettlementTestSuite) TestImport_IsIdempotent() {
	first := s.importUpload("2025-01")
	s.Equal(3, first.Inserted)
	s.Equal(int64(0), first.Replaced)
	s.Len(first.Skipped, 1)

	second := s.importUpload("2025-01")
	s.Equal(3, second.Inserted)
	s.Equal(int64(3), second.Replaced)

	count, err := s.db.CountSettlements(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *SettlementTestSuite) TestImport_KeepsOtherMonths() {
	s.importUpload("2025-01")
	s.importUpload("2025-02")

	months, err := s.service.Months(s.ctx, Viewer{Admin: true})
	s.Require().NoError(err)
	s.Require().Len(months.Months, 2)
	s.Equal("2025-02", months.Months[0].Month)
}

func (s *SettlementTestSuite) TestImport_InvalidMonth() {
	for _, month := range []string{"", "2025-1", "2025/01", "2025-13", "January"} {
		_, err := s.service.Import(s.ctx, s.workbook(s.upload()), month, nil)
		s.ErrorIs(err, ErrInvalidMonth, month)
	}
}

func (s *SettlementTestSuite) TestImport_Overrides() {
	// pin the note column and ignore the customer code
	_, err := s.service.Import(s.ctx, s.workbook(s.upload()), "2025-01", map[string]string{
		"담당자 메모": database.FieldNote,
		"거래처코드":  "",
	})
	s.Require().NoError(err)

	rows, err := s.db.ListSettlements(s.ctx, database.SettlementFilter{Month: "2025-01"})
	s.Require().NoError(err)
	s.Require().NotEmpty(rows)
	s.Empty(rows[0].CustomerCode)

	_, err = s.service.Import(s.ctx, s.workbook(s.upload()), "2025-01", map[string]string{"CSO명": "nope"})
	s.ErrorIs(err, columnmap.ErrUnknownField)
}

func (s *SettlementTestSuite) TestImport_NoRows() {
	_, err := s.service.Import(s.ctx, s.workbook([][]any{
		{"사업자번호", "수수료금액"},
		{"123", 10},
	}), "2025-01", nil)
	s.ErrorIs(err, ErrNoRows)
}

func (s *SettlementTestSuite) TestList_RestrictsNonAdmins() {
	s.importUpload("2025-01")

	user := Viewer{BusinessNumber: "1234567890"}
	table, err := s.service.List(s.ctx, user, Query{Month: "2025-01", BusinessNumber: "2222222222"})
	s.Require().NoError(err)
	s.Len(table.Rows, 2)
	for _, row := range table.Rows {
		s.Equal("1234567890", row.BusinessNumber)
	}
	s.InDelta(15000, table.Totals.CommissionAmount, 0.001)

	months, err := s.service.Months(s.ctx, Viewer{BusinessNumber: "9999999999"})
	s.Require().NoError(err)
	s.Empty(months.Months)

	_, err = s.service.List(s.ctx, Viewer{}, Query{})
	s.ErrorIs(err, ErrNoBusinessNumber)
	_, err = s.service.Months(s.ctx, Viewer{})
	s.ErrorIs(err, ErrNoBusinessNumber)
}

func (s *SettlementTestSuite) TestList_AdminFilter() {
	s.importUpload("2025-01")

	table, err := s.service.List(s.ctx, Viewer{Admin: true}, Query{Month: "2025-01", BusinessNumber: "222-22-22222"})
	s.Require().NoError(err)
	s.Len(table.Rows, 1)

	table, err = s.service.List(s.ctx, Viewer{Admin: true}, Query{Month: "2025-01"})
	s.Require().NoError(err)
	s.Len(table.Rows, 3)
}

func (s *SettlementTestSuite) TestList_Columns() {
	s.importUpload("2025-01")

	userTable, err := s.service.List(s.ctx, Viewer{BusinessNumber: "1234567890"}, Query{})
	s.Require().NoError(err)
	adminTable, err := s.service.List(s.ctx, Viewer{Admin: true}, Query{})
	s.Require().NoError(err)

	keys := func(cols []database.ColumnSetting) []string {
		return lo.Map(cols, func(c database.ColumnSetting, _ int) string { return c.ColumnKey })
	}
	s.NotContains(keys(userTable.Columns), database.FieldCustomerCode)
	s.Contains(keys(adminTable.Columns), database.FieldCustomerCode)
}

func (s *SettlementTestSuite) TestHiddenTotals() {
	s.importUpload("2025-01")
	_, err := s.settings.UpdateColumn(s.ctx, database.FieldCommissionAmount, database.ColumnSettingUpdate{IsVisible: lo.ToPtr(false)})
	s.Require().NoError(err)

	user := Viewer{BusinessNumber: "1234567890"}
	table, err := s.service.List(s.ctx, user, Query{Month: "2025-01"})
	s.Require().NoError(err)
	s.Zero(table.Totals.CommissionAmount)
	s.InDelta(2, table.Totals.RowCount, 0)
	s.NotZero(table.Totals.PrescriptionAmount)

	report, err := s.service.Pivot(s.ctx, user, Query{Month: "2025-01"})
	s.Require().NoError(err)
	s.Zero(report.Report.Total.CommissionAmount)
	for _, g := range report.Report.Groups {
		s.Zero(g.Subtotal.CommissionAmount)
		for _, c := range g.Customers {
			s.Zero(c.Subtotal.CommissionAmount)
		}
	}

	months, err := s.service.Months(s.ctx, user)
	s.Require().NoError(err)
	s.Require().Len(months.Months, 1)
	s.Zero(months.Months[0].CommissionAmount)

	admin, err := s.service.Pivot(s.ctx, Viewer{Admin: true}, Query{Month: "2025-01"})
	s.Require().NoError(err)
	s.InDelta(17000, admin.Report.Total.CommissionAmount, 0.001)
}

func (s *SettlementTestSuite) TestPivot() {
	s.importUpload("2025-01")

	table, err := s.service.Pivot(s.ctx, Viewer{Admin: true}, Query{Month: "2025-01"})
	s.Require().NoError(err)
	s.Require().Len(table.Report.Groups, 2)
	s.Equal("1234567890", table.Report.Groups[0].BusinessNumber)
	s.Len(table.Report.Groups[0].Customers, 2)
	s.InDelta(17000, table.Report.Total.CommissionAmount, 0.001)
}

func (s *SettlementTestSuite) TestExport() {
	s.importUpload("2025-01")

	var buf bytes.Buffer
	name, err := s.service.Export(s.ctx, Viewer{BusinessNumber: "1234567890"}, Query{Month: "2025-01"}, true, &buf)
	s.Require().NoError(err)
	s.Equal("settlements_2025-01_1234567890.xlsx", name)

	f, err := excelize.OpenReader(&buf)
	s.Require().NoError(err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows(f.GetSheetName(0))
	s.Require().NoError(err)
	// header, two rows, two customer subtotals, one cso subtotal, grand total
	s.Len(rows, 7)
}

func (s *SettlementTestSuite) TestDeleteMonth() {
	s.importUpload("2025-01")

	deleted, err := s.service.DeleteMonth(s.ctx, "2025-01")
	s.Require().NoError(err)
	s.Equal(int64(3), deleted)

	_, err = s.service.DeleteMonth(s.ctx, "bad")
	s.ErrorIs(err, ErrInvalidMonth)
}
