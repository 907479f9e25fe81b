// Package columnmap maps the header row of an uploaded spreadsheet to settlement columns
// using normalized alias matching and Levenshtein similarity.
package columnmap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/samber/lo"
)

// DefaultThreshold is the minimum similarity for an automatic match.
const DefaultThreshold = 0.6

var (
	// ErrUnknownField is returned when an override targets a column that does not exist.
	ErrUnknownField = errors.New("unknown settlement field")
	// ErrDuplicateField is returned when two headers are mapped to the same column.
	ErrDuplicateField = errors.New("settlement field mapped more than once")
	// ErrUnknownHeader is returned when an override names a header that is not in the sheet.
	ErrUnknownHeader = errors.New("header not found in sheet")
	// ErrMissingBusinessNumber is returned when no header maps to the business number.
	ErrMissingBusinessNumber = errors.New("no column mapped to the business number")
)

// Match is the column chosen for a single header.
type Match struct {
	Index  int     `json:"index"`
	Header string  `json:"header"`
	Field  string  `json:"field"`
	Score  float64 `json:"score"`
	Manual bool    `json:"manual"`
}

// Result is the outcome of mapping a header row.
type Result struct {
	// Matches are ordered by header index.
	Matches []Match `json:"matches"`
	// Unmapped lists the headers without a column.
	Unmapped []string `json:"unmapped"`
	// Missing lists the settlement columns no header maps to.
	Missing []string `json:"missing"`
}

// Fields returns the header index to field mapping.
func (r *Result) Fields() map[int]string {
	return lo.SliceToMap(r.Matches, func(m Match) (int, string) {
		return m.Index, m.Field
	})
}

// Validate checks that the result can be imported.
func (r *Result) Validate() error {
	if lo.ContainsBy(r.Matches, func(m Match) bool { return m.Field == database.FieldBusinessNumber }) {
		return nil
	}
	return ErrMissingBusinessNumber
}

// Matcher maps headers to settlement columns.
type Matcher struct {
	threshold float64
	aliases   map[string][]string
}

// New returns a matcher using the default aliases.
// A threshold outside (0, 1] falls back to DefaultThreshold.
func New(threshold float64) *Matcher {
	return NewWithAliases(threshold, DefaultAliases)
}

// NewWithAliases returns a matcher using the given aliases per field.
func NewWithAliases(threshold float64, aliases map[string][]string) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	normalized := make(map[string][]string, len(aliases))
	for field, list := range aliases {
		for _, a := range list {
			if n := Normalize(a); n != "" {
				normalized[field] = append(normalized[field], n)
			}
		}
		// the field key itself is always accepted
		normalized[field] = append(normalized[field], Normalize(field))
	}
	return &Matcher{threshold: threshold, aliases: normalized}
}

type candidate struct {
	header int
	field  string
	order  int
	score  float64
}

// Map assigns settlement columns to headers automatically.
func (m *Matcher) Map(headers []string) *Result {
	res, _ := m.MapWithOverrides(headers, nil)
	return res
}

// MapWithOverrides maps headers, honoring explicit header to field overrides.
// An override with an empty field leaves the header unmapped.
func (m *Matcher) MapWithOverrides(headers []string, overrides map[string]string) (*Result, error) {
	assigned := make(map[int]Match, len(headers))
	usedFields := make(map[string]bool)

	// overrides first, in header order so errors are deterministic
	for i, h := range headers {
		field, ok := overrides[h]
		if !ok {
			continue
		}
		if field == "" {
			assigned[i] = Match{Index: i, Header: h, Manual: true}
			continue
		}
		if !database.IsSettlementField(field) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		if usedFields[field] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateField, field)
		}
		usedFields[field] = true
		assigned[i] = Match{Index: i, Header: h, Field: field, Score: 1, Manual: true}
	}
	for h := range overrides {
		if !lo.Contains(headers, h) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownHeader, h)
		}
	}

	var candidates []candidate
	for i, h := range headers {
		if _, ok := assigned[i]; ok {
			continue
		}
		nh := Normalize(h)
		if nh == "" {
			continue
		}
		for order, field := range database.SettlementFields {
			if usedFields[field] {
				continue
			}
			score := m.score(nh, field)
			if score < m.threshold {
				continue
			}
			candidates = append(candidates, candidate{header: i, field: field, order: order, score: score})
		}
	}

	// greedy: best score first, ties by field order then header position
	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.score != cb.score {
			return ca.score > cb.score
		}
		if ca.order != cb.order {
			return ca.order < cb.order
		}
		return ca.header < cb.header
	})
	for _, c := range candidates {
		if _, ok := assigned[c.header]; ok || usedFields[c.field] {
			continue
		}
		usedFields[c.field] = true
		assigned[c.header] = Match{Index: c.header, Header: headers[c.header], Field: c.field, Score: c.score}
	}

	res := &Result{Matches: []Match{}, Unmapped: []string{}}
	for i, h := range headers {
		if match, ok := assigned[i]; ok && match.Field != "" {
			res.Matches = append(res.Matches, match)
			continue
		}
		if strings.TrimSpace(h) != "" {
			res.Unmapped = append(res.Unmapped, h)
		}
	}
	res.Missing = lo.Filter(database.SettlementFields, func(f string, _ int) bool {
		return !usedFields[f]
	})
	return res, nil
}

// score returns the best similarity of a normalized header to the aliases of a field.
func (m *Matcher) score(header, field string) float64 {
	best := 0.0
	for _, alias := range m.aliases[field] {
		if s := Similarity(header, alias); s > best {
			best = s
			if best == 1 {
				break
			}
		}
	}
	return best
}

// Similarity compares two normalized strings. Exact matches score 1, containment of
// at least two characters scores 0.9, everything else is scored by edit distance.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if min(la, lb) >= 2 && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return 0.9
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(max(la, lb))
}

// Normalize lower-cases s and strips whitespace and punctuation.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
