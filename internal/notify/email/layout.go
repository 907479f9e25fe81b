package email

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/jon4hz/csoportal/internal/database"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))

// Layout is the data of the HTML email frame.
type Layout struct {
	Subject      string
	Sender       string
	Body         string
	ActionURL    string
	ActionLabel  string
	Footer       string
	ContactEmail string
	ContactPhone string
}

// Paragraphs splits the plain text body on blank lines, and each paragraph into lines.
func (l Layout) Paragraphs() [][]string {
	var out [][]string
	body := strings.ReplaceAll(l.Body, "\r\n", "\n")
	for _, p := range strings.Split(body, "\n\n") {
		p = strings.Trim(p, "\n")
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, strings.Split(p, "\n"))
	}
	return out
}

// RenderHTML renders the plain text body into the HTML frame. The body is escaped.
func RenderHTML(l Layout) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "layout.html", l); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// newLayout fills the sender details from the company settings.
func newLayout(company map[string]string, subject, body string) Layout {
	sender := company[database.CompanySettingName]
	if sender == "" {
		sender = "CSO Portal"
	}
	return Layout{
		Subject:      subject,
		Sender:       sender,
		Body:         body,
		Footer:       company[database.CompanySettingFooterText],
		ContactEmail: company[database.CompanySettingContactEmail],
		ContactPhone: company[database.CompanySettingContactPhone],
	}
}
