package email

import (
	"regexp"

	"github.com/dustin/go-humanize"
	"github.com/jon4hz/csoportal/internal/bizno"
)

// Mail-merge placeholders.
const (
	PlaceholderCompanyName     = "company_name"
	PlaceholderBusinessNumber  = "business_number"
	PlaceholderCEOName         = "ceo_name"
	PlaceholderEmail           = "email"
	PlaceholderMonth           = "month"
	PlaceholderTotalCommission = "total_commission"
	PlaceholderPortalURL       = "portal_url"
)

// Placeholders lists the supported placeholders in the order they are documented.
var Placeholders = []string{
	PlaceholderCompanyName,
	PlaceholderBusinessNumber,
	PlaceholderCEOName,
	PlaceholderEmail,
	PlaceholderMonth,
	PlaceholderTotalCommission,
	PlaceholderPortalURL,
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_]+)\s*\}\}`)

// Render replaces {{name}} placeholders with values. Unknown placeholders are kept.
func Render(tmpl string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return m
	})
}

// Recipient is a user addressed by a bulk send.
type Recipient struct {
	UserID         uint
	BusinessNumber string
	CompanyName    string
	CEOName        string
	Email          string
	OptedOut       bool
	// TotalCommission is the summed commission of the merged month.
	TotalCommission float64
}

// MergeValues returns the placeholder values for a recipient.
func MergeValues(r Recipient, month, portalURL string) map[string]string {
	return map[string]string{
		PlaceholderCompanyName:     r.CompanyName,
		PlaceholderBusinessNumber:  bizno.Format(r.BusinessNumber),
		PlaceholderCEOName:         r.CEOName,
		PlaceholderEmail:           r.Email,
		PlaceholderMonth:           month,
		PlaceholderTotalCommission: FormatWon(r.TotalCommission),
		PlaceholderPortalURL:       portalURL,
	}
}

// FormatWon formats an amount as whole won with thousands separators.
func FormatWon(v float64) string {
	return humanize.CommafWithDigits(v, 0) + "원"
}
