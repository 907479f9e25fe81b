package pivot

import "github.com/jon4hz/csoportal/internal/database"

// LineKind tells what a flattened report line represents.
type LineKind int

const (
	LineRow LineKind = iota
	LineCustomerSubtotal
	LineCSOSubtotal
	LineTotal
)

// Line is one row of the flattened report, as written to a spreadsheet.
type Line struct {
	Kind           LineKind
	BusinessNumber string
	CSOName        string
	CustomerName   string
	// Row is set for LineRow only.
	Row *database.Settlement
	// Totals is set for every subtotal kind.
	Totals Totals
}

// Lines flattens the report into rows followed by their customer and CSO subtotals,
// ending with the grand total.
func (r *Report) Lines() []Line {
	lines := make([]Line, 0, r.Total.RowCount+2*len(r.Groups)+1)
	for gi := range r.Groups {
		g := &r.Groups[gi]
		for ci := range g.Customers {
			c := &g.Customers[ci]
			for ri := range c.Rows {
				lines = append(lines, Line{
					Kind:           LineRow,
					BusinessNumber: g.BusinessNumber,
					CSOName:        g.CSOName,
					CustomerName:   c.CustomerName,
					Row:            &c.Rows[ri],
				})
			}
			lines = append(lines, Line{
				Kind:           LineCustomerSubtotal,
				BusinessNumber: g.BusinessNumber,
				CSOName:        g.CSOName,
				CustomerName:   c.CustomerName,
				Totals:         c.Subtotal,
			})
		}
		lines = append(lines, Line{
			Kind:           LineCSOSubtotal,
			BusinessNumber: g.BusinessNumber,
			CSOName:        g.CSOName,
			Totals:         g.Subtotal,
		})
	}
	return append(lines, Line{Kind: LineTotal, Totals: r.Total})
}
