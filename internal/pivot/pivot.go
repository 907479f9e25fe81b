// Package pivot groups settlement rows by CSO and customer and computes subtotals.
package pivot

import (
	"strings"

	"github.com/jon4hz/csoportal/internal/database"
)

// UnassignedCustomer groups rows without a customer name.
const UnassignedCustomer = "(미지정)"

// Totals are the summed numeric columns of a set of rows.
type Totals struct {
	Quantity           float64 `json:"quantity"`
	PrescriptionAmount float64 `json:"prescriptionAmount"`
	CommissionAmount   float64 `json:"commissionAmount"`
	RowCount           int     `json:"rowCount"`
}

// Add accumulates a single row.
func (t *Totals) Add(s *database.Settlement) {
	t.Quantity += s.Quantity
	t.PrescriptionAmount += s.PrescriptionAmount
	t.CommissionAmount += s.CommissionAmount
	t.RowCount++
}

// TotalFields are the column keys summed by Totals.
var TotalFields = []string{
	database.FieldQuantity,
	database.FieldPrescriptionAmount,
	database.FieldCommissionAmount,
}

// Value returns the total of a summed column.
func (t Totals) Value(key string) (float64, bool) {
	switch key {
	case database.FieldQuantity:
		return t.Quantity, true
	case database.FieldPrescriptionAmount:
		return t.PrescriptionAmount, true
	case database.FieldCommissionAmount:
		return t.CommissionAmount, true
	}
	return 0, false
}

// Hide zeroes the totals of the given columns.
func (t *Totals) Hide(keys ...string) {
	for _, k := range keys {
		switch k {
		case database.FieldQuantity:
			t.Quantity = 0
		case database.FieldPrescriptionAmount:
			t.PrescriptionAmount = 0
		case database.FieldCommissionAmount:
			t.CommissionAmount = 0
		}
	}
}

// Merge accumulates other totals.
func (t *Totals) Merge(o Totals) {
	t.Quantity += o.Quantity
	t.PrescriptionAmount += o.PrescriptionAmount
	t.CommissionAmount += o.CommissionAmount
	t.RowCount += o.RowCount
}

// CustomerGroup holds the rows of one customer within a CSO.
type CustomerGroup struct {
	CustomerName string                `json:"customerName"`
	Rows         []database.Settlement `json:"rows"`
	Subtotal     Totals                `json:"subtotal"`
}

// CSOGroup holds the customers of one business number.
type CSOGroup struct {
	BusinessNumber string          `json:"businessNumber"`
	CSOName        string          `json:"csoName"`
	Customers      []CustomerGroup `json:"customers"`
	Subtotal       Totals          `json:"subtotal"`
}

// Report is the grouped view of a set of settlement rows.
type Report struct {
	Groups []CSOGroup `json:"groups"`
	Total  Totals     `json:"total"`
}

// Build groups rows by business number and then by customer name.
// Groups keep the order in which they first appear, rows keep their input order.
func Build(rows []database.Settlement) *Report {
	report := &Report{Groups: []CSOGroup{}}
	csoIndex := make(map[string]int)
	customerIndex := make([]map[string]int, 0)

	for i := range rows {
		row := &rows[i]

		gi, ok := csoIndex[row.BusinessNumber]
		if !ok {
			gi = len(report.Groups)
			csoIndex[row.BusinessNumber] = gi
			report.Groups = append(report.Groups, CSOGroup{BusinessNumber: row.BusinessNumber})
			customerIndex = append(customerIndex, make(map[string]int))
		}
		group := &report.Groups[gi]
		if group.CSOName == "" {
			group.CSOName = strings.TrimSpace(row.CSOName)
		}

		name := CustomerName(row)
		ci, ok := customerIndex[gi][name]
		if !ok {
			ci = len(group.Customers)
			customerIndex[gi][name] = ci
			group.Customers = append(group.Customers, CustomerGroup{CustomerName: name})
		}
		customer := &group.Customers[ci]
		customer.Rows = append(customer.Rows, *row)
		customer.Subtotal.Add(row)
		group.Subtotal.Add(row)
		report.Total.Add(row)
	}
	return report
}

// Hide zeroes the totals of the given columns in every subtotal and the grand total.
func (r *Report) Hide(keys ...string) {
	if len(keys) == 0 {
		return
	}
	for gi := range r.Groups {
		g := &r.Groups[gi]
		for ci := range g.Customers {
			g.Customers[ci].Subtotal.Hide(keys...)
		}
		g.Subtotal.Hide(keys...)
	}
	r.Total.Hide(keys...)
}

// CustomerName returns the grouping name of a row's customer.
func CustomerName(s *database.Settlement) string {
	if name := strings.TrimSpace(s.CustomerName); name != "" {
		return name
	}
	return UnassignedCustomer
}
