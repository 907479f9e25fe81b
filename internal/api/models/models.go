// Package models contains the JSON views returned by the API.
package models

import "time"

// Authentication methods of a request.
const (
	AuthPassword = "password"
	AuthToken    = "token"
	AuthOIDC     = "oidc"
)

// User is the authenticated account of a request.
type User struct {
	ID             uint   `json:"id"`
	BusinessNumber string `json:"businessNumber"`
	CompanyName    string `json:"companyName"`
	CEOName        string `json:"ceoName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	IsAdmin        bool   `json:"isAdmin"`
	EmailOptIn     bool   `json:"emailOptIn"`
	AuthMethod     string `json:"authMethod"`
	GravatarURL    string `json:"gravatarUrl,omitempty"` // empty if gravatar is disabled
}

// AdminUser is an account as shown in the user management.
type AdminUser struct {
	ID             uint       `json:"id"`
	BusinessNumber string     `json:"businessNumber"`
	CompanyName    string     `json:"companyName"`
	CEOName        string     `json:"ceoName"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Role           string     `json:"role"`
	IsApproved     bool       `json:"isApproved"`
	EmailOptIn     bool       `json:"emailOptIn"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginAgo   string     `json:"lastLoginAgo"`
	GravatarURL    string     `json:"gravatarUrl,omitempty"`
}

// Column is a settlement column with its display settings.
type Column struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Order   int    `json:"order"`
	Numeric bool   `json:"numeric"`
}

// Record is a settlement row reduced to the columns the caller may see.
type Record map[string]any

// Totals are the sums of the visible numeric columns keyed by column, plus rowCount.
type Totals map[string]any

// Month summarizes a settlement month. CommissionAmount is left out when the
// commission column is hidden.
type Month struct {
	Month            string   `json:"month"`
	Rows             int64    `json:"rows"`
	CommissionAmount *float64 `json:"commissionAmount,omitempty"`
}

// SettlementTable is a flat list of settlement rows.
type SettlementTable struct {
	Columns []Column `json:"columns"`
	Rows    []Record `json:"rows"`
	Totals  Totals   `json:"totals"`
}

// PivotCustomer holds the rows of one customer.
type PivotCustomer struct {
	CustomerName string   `json:"customerName"`
	Rows         []Record `json:"rows"`
	Subtotal     Totals   `json:"subtotal"`
}

// PivotGroup holds the customers of one CSO.
type PivotGroup struct {
	BusinessNumber string          `json:"businessNumber"`
	CSOName        string          `json:"csoName"`
	Customers      []PivotCustomer `json:"customers"`
	Subtotal       Totals          `json:"subtotal"`
}

// PivotReport is the grouped settlement view.
type PivotReport struct {
	Columns []Column     `json:"columns"`
	Groups  []PivotGroup `json:"groups"`
	Total   Totals       `json:"total"`
}

// EmailLog is an entry of the email log.
type EmailLog struct {
	ID              uint      `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	Kind            string    `json:"kind"`
	Recipient       string    `json:"recipient"`
	BusinessNumber  string    `json:"businessNumber"`
	Subject         string    `json:"subject"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	SettlementMonth string    `json:"settlementMonth,omitempty"`
}

// Stats are the numbers shown on the admin dashboard.
type Stats struct {
	Users            int64   `json:"users"`
	ApprovedUsers    int64   `json:"approvedUsers"`
	PendingApprovals int64   `json:"pendingApprovals"`
	Admins           int64   `json:"admins"`
	Months           int     `json:"months"`
	Settlements      int64   `json:"settlements"`
	LatestMonth      string  `json:"latestMonth,omitempty"`
	LatestCommission float64 `json:"latestCommission"`
	EmailsSent       int64   `json:"emailsSent"`
	EmailsFailed     int64   `json:"emailsFailed"`
}
