package database

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Settlement column keys. They double as column_settings keys and as targets of the
// spreadsheet header mapping.
const (
	FieldBusinessNumber     = "business_number"
	FieldCSOName            = "cso_name"
	FieldCustomerCode       = "customer_code"
	FieldCustomerName       = "customer_name"
	FieldProductCode        = "product_code"
	FieldProductName        = "product_name"
	FieldQuantity           = "quantity"
	FieldUnitPrice          = "unit_price"
	FieldPrescriptionAmount = "prescription_amount"
	FieldCommissionRate     = "commission_rate"
	FieldCommissionAmount   = "commission_amount"
	FieldNote               = "note"
)

// SettlementFields lists all settlement columns in their default display order.
var SettlementFields = []string{
	FieldBusinessNumber,
	FieldCSOName,
	FieldCustomerCode,
	FieldCustomerName,
	FieldProductCode,
	FieldProductName,
	FieldQuantity,
	FieldUnitPrice,
	FieldPrescriptionAmount,
	FieldCommissionRate,
	FieldCommissionAmount,
	FieldNote,
}

// IsNumericField reports whether the column holds a number.
func IsNumericField(key string) bool {
	switch key {
	case FieldQuantity, FieldUnitPrice, FieldPrescriptionAmount, FieldCommissionRate, FieldCommissionAmount:
		return true
	}
	return false
}

// IsSettlementField reports whether key names a settlement column.
func IsSettlementField(key string) bool {
	for _, f := range SettlementFields {
		if f == key {
			return true
		}
	}
	return false
}

// Settlement is one row of commission calculation data for a business number and month.
type Settlement struct {
	gorm.Model
	SettlementMonth    string `gorm:"index;not null"` // YYYY-MM
	BusinessNumber     string `gorm:"index;not null"`
	CSOName            string
	CustomerCode       string
	CustomerName       string
	ProductCode        string
	ProductName        string
	Quantity           float64
	UnitPrice          float64
	PrescriptionAmount float64
	CommissionRate     float64
	CommissionAmount   float64
	Note               string
	SourceRow          int // row in the uploaded sheet
}

// Value returns the value of the column with the given key, or nil for unknown keys.
func (s *Settlement) Value(key string) any {
	switch key {
	case FieldBusinessNumber:
		return s.BusinessNumber
	case FieldCSOName:
		return s.CSOName
	case FieldCustomerCode:
		return s.CustomerCode
	case FieldCustomerName:
		return s.CustomerName
	case FieldProductCode:
		return s.ProductCode
	case FieldProductName:
		return s.ProductName
	case FieldQuantity:
		return s.Quantity
	case FieldUnitPrice:
		return s.UnitPrice
	case FieldPrescriptionAmount:
		return s.PrescriptionAmount
	case FieldCommissionRate:
		return s.CommissionRate
	case FieldCommissionAmount:
		return s.CommissionAmount
	case FieldNote:
		return s.Note
	}
	return nil
}

// SettlementFilter narrows down ListSettlements.
type SettlementFilter struct {
	Month          string
	BusinessNumber string
	// Search matches customer or product names.
	Search string
}

// MonthSummary aggregates the rows of one settlement month.
type MonthSummary struct {
	Month            string  `json:"month"`
	Rows             int64   `json:"rows" gorm:"column:row_count"`
	CommissionAmount float64 `json:"commissionAmount"`
}

// ReplaceSettlementMonth replaces every row of a month with rows in a single transaction.
// Uploading the same data twice yields the same result. It returns the number of removed rows.
func (c *Client) ReplaceSettlementMonth(ctx context.Context, month string, rows []Settlement) (int64, error) {
	var removed int64
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Unscoped().Where("settlement_month = ?", month).Delete(&Settlement{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected

		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].ID = 0
			rows[i].SettlementMonth = month
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		log.Error("failed to replace settlement month", "month", month, "error", err)
		return 0, err
	}
	return removed, nil
}

func (c *Client) ListSettlements(ctx context.Context, filter SettlementFilter) ([]Settlement, error) {
	query := c.db.WithContext(ctx).Model(&Settlement{})
	if filter.Month != "" {
		query = query.Where("settlement_month = ?", filter.Month)
	}
	if filter.BusinessNumber != "" {
		query = query.Where("business_number = ?", filter.BusinessNumber)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		query = query.Where("customer_name LIKE ? OR product_name LIKE ? OR cso_name LIKE ?", like, like, like)
	}

	var rows []Settlement
	if err := query.Order("settlement_month DESC, source_row ASC, id ASC").Find(&rows).Error; err != nil {
		log.Error("failed to list settlements", "error", err)
		return nil, err
	}
	return rows, nil
}

// ListSettlementMonths returns the available months, newest first.
// An empty business number lists the months across all accounts.
func (c *Client) ListSettlementMonths(ctx context.Context, businessNumber string) ([]MonthSummary, error) {
	query := c.db.WithContext(ctx).Model(&Settlement{}).
		Select("settlement_month AS month, COUNT(*) AS row_count, COALESCE(SUM(commission_amount), 0) AS commission_amount")
	if businessNumber != "" {
		query = query.Where("business_number = ?", businessNumber)
	}

	var months []MonthSummary
	if err := query.Group("settlement_month").Order("settlement_month DESC").Scan(&months).Error; err != nil {
		log.Error("failed to list settlement months", "error", err)
		return nil, err
	}
	return months, nil
}

func (c *Client) DeleteSettlementMonth(ctx context.Context, month string) (int64, error) {
	result := c.db.WithContext(ctx).Unscoped().Where("settlement_month = ?", month).Delete(&Settlement{})
	if result.Error != nil {
		log.Error("failed to delete settlement month", "month", month, "error", result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (c *Client) CountSettlements(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&Settlement{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CommissionTotals returns the summed commission per business number for a month.
func (c *Client) CommissionTotals(ctx context.Context, month string) (map[string]float64, error) {
	var rows []struct {
		BusinessNumber string
		Total          float64
	}
	err := c.db.WithContext(ctx).Model(&Settlement{}).
		Select("business_number, COALESCE(SUM(commission_amount), 0) AS total").
		Where("settlement_month = ?", month).
		Group("business_number").
		Scan(&rows).Error
	if err != nil {
		log.Error("failed to sum commissions", "month", month, "error", err)
		return nil, err
	}

	totals := make(map[string]float64, len(rows))
	for _, r := range rows {
		totals[r.BusinessNumber] = r.Total
	}
	return totals, nil
}
