package models

import (
	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/gravatar"
	"github.com/jon4hz/csoportal/internal/pivot"
	"github.com/jon4hz/csoportal/internal/settlement"
	"github.com/mergestat/timediff"
	"github.com/samber/lo"
)

// ToUser converts an account into the user of a request.
func ToUser(u *database.User, method string, gravatarCfg *config.GravatarConfig) *User {
	return &User{
		ID:             u.ID,
		BusinessNumber: u.BusinessNumber,
		CompanyName:    u.CompanyName,
		CEOName:        u.CEOName,
		Email:          u.Email,
		Phone:          u.Phone,
		IsAdmin:        u.IsAdmin(),
		EmailOptIn:     u.EmailOptIn,
		AuthMethod:     method,
		GravatarURL:    gravatar.URL(u.Email, gravatarCfg),
	}
}

// ToAdminUser converts an account for the user management.
func ToAdminUser(u database.User, gravatarCfg *config.GravatarConfig) AdminUser {
	item := AdminUser{
		ID:             u.ID,
		BusinessNumber: u.BusinessNumber,
		CompanyName:    u.CompanyName,
		CEOName:        u.CEOName,
		Email:          u.Email,
		Phone:          u.Phone,
		Role:           string(u.Role),
		IsApproved:     u.IsApproved,
		EmailOptIn:     u.EmailOptIn,
		CreatedAt:      u.CreatedAt,
		LastLoginAt:    u.LastLoginAt,
		GravatarURL:    gravatar.URL(u.Email, gravatarCfg),
	}
	if u.LastLoginAt != nil {
		item.LastLoginAgo = timediff.TimeDiff(*u.LastLoginAt)
	}
	return item
}

// ToAdminUsers converts a slice of accounts.
func ToAdminUsers(users []database.User, gravatarCfg *config.GravatarConfig) []AdminUser {
	return lo.Map(users, func(u database.User, _ int) AdminUser {
		return ToAdminUser(u, gravatarCfg)
	})
}

// ToColumn converts a column setting.
func ToColumn(c database.ColumnSetting) Column {
	return Column{
		Key:     c.ColumnKey,
		Name:    c.DisplayName,
		Visible: c.IsVisible,
		Order:   c.DisplayOrder,
		Numeric: database.IsNumericField(c.ColumnKey),
	}
}

// ToColumns converts column settings keeping their order.
func ToColumns(columns []database.ColumnSetting) []Column {
	return lo.Map(columns, func(c database.ColumnSetting, _ int) Column { return ToColumn(c) })
}

// ToRecord projects a settlement row onto the given columns. Fields of other columns are
// left out so hidden columns never reach the client.
func ToRecord(s *database.Settlement, columns []database.ColumnSetting) Record {
	rec := make(Record, len(columns)+2)
	rec["id"] = s.ID
	rec["month"] = s.SettlementMonth
	for _, c := range columns {
		rec[c.ColumnKey] = s.Value(c.ColumnKey)
	}
	return rec
}

func toRecords(rows []database.Settlement, columns []database.ColumnSetting) []Record {
	records := make([]Record, len(rows))
	for i := range rows {
		records[i] = ToRecord(&rows[i], columns)
	}
	return records
}

// ToTotals projects totals onto the given columns.
func ToTotals(t pivot.Totals, columns []database.ColumnSetting) Totals {
	out := Totals{"rowCount": t.RowCount}
	for _, c := range columns {
		if v, ok := t.Value(c.ColumnKey); ok {
			out[c.ColumnKey] = v
		}
	}
	return out
}

// ToMonths converts month summaries. The commission sum is only set when the
// commission column is among the given columns.
func ToMonths(l *settlement.MonthList) []Month {
	showCommission := lo.ContainsBy(l.Columns, func(c database.ColumnSetting) bool {
		return c.ColumnKey == database.FieldCommissionAmount
	})
	return lo.Map(l.Months, func(m database.MonthSummary, _ int) Month {
		item := Month{Month: m.Month, Rows: m.Rows}
		if showCommission {
			item.CommissionAmount = lo.ToPtr(m.CommissionAmount)
		}
		return item
	})
}

// ToSettlementTable converts a settlement listing.
func ToSettlementTable(t *settlement.Table) SettlementTable {
	return SettlementTable{
		Columns: ToColumns(t.Columns),
		Rows:    toRecords(t.Rows, t.Columns),
		Totals:  ToTotals(t.Totals, t.Columns),
	}
}

// ToPivotReport converts a grouped settlement report.
func ToPivotReport(t *settlement.PivotTable) PivotReport {
	return PivotReport{
		Columns: ToColumns(t.Columns),
		Groups: lo.Map(t.Report.Groups, func(g pivot.CSOGroup, _ int) PivotGroup {
			return PivotGroup{
				BusinessNumber: g.BusinessNumber,
				CSOName:        g.CSOName,
				Subtotal:       ToTotals(g.Subtotal, t.Columns),
				Customers: lo.Map(g.Customers, func(c pivot.CustomerGroup, _ int) PivotCustomer {
					return PivotCustomer{
						CustomerName: c.CustomerName,
						Rows:         toRecords(c.Rows, t.Columns),
						Subtotal:     ToTotals(c.Subtotal, t.Columns),
					}
				}),
			}
		}),
		Total: ToTotals(t.Report.Total, t.Columns),
	}
}

// ToEmailLogs converts email log entries.
func ToEmailLogs(entries []database.EmailLog) []EmailLog {
	return lo.Map(entries, func(e database.EmailLog, _ int) EmailLog {
		return EmailLog{
			ID:              e.ID,
			CreatedAt:       e.CreatedAt,
			Kind:            e.Kind,
			Recipient:       e.Recipient,
			BusinessNumber:  e.BusinessNumber,
			Subject:         e.Subject,
			Status:          e.Status,
			ErrorMessage:    e.ErrorMessage,
			SettlementMonth: e.SettlementMonth,
		}
	})
}
