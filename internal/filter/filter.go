// Package filter turns the optional listing criteria of the admin panel into
// a storage predicate.
//
// A Predicate has two renderings. SQL covers the columns that are stored in
// plaintext (read, starred, tags, created_at). Match evaluates every criterion,
// including the free-text search, against a decrypted message. Search cannot
// be pushed down to storage because name is the only searchable column kept in
// plaintext; the other three are ciphertext.
package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/portfolio/backend/internal/model"
)

const dateLayout = "2006-01-02"

// Criteria holds the optional filters. A nil pointer or empty string means no constraint.
type Criteria struct {
	Read     *bool
	Starred  *bool
	Tag      string
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return c.Read == nil && c.Starred == nil && c.Tag == "" && c.Search == "" &&
		c.DateFrom == nil && c.DateTo == nil
}

// ParseError reports a query parameter that could not be interpreted.
type ParseError struct {
	Param string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid value %q for %s", e.Value, e.Param)
}

// Parse reads criteria from the read, starred, tag, search, dateFrom and dateTo
// query parameters. Empty parameters are ignored.
func Parse(q url.Values) (Criteria, error) {
	var c Criteria

	if v := strings.TrimSpace(q.Get("read")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Criteria{}, &ParseError{Param: "read", Value: v}
		}
		c.Read = &b
	}
	if v := strings.TrimSpace(q.Get("starred")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Criteria{}, &ParseError{Param: "starred", Value: v}
		}
		c.Starred = &b
	}
	c.Tag = strings.TrimSpace(q.Get("tag"))
	c.Search = strings.TrimSpace(q.Get("search"))

	if v := strings.TrimSpace(q.Get("dateFrom")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return Criteria{}, &ParseError{Param: "dateFrom", Value: v}
		}
		c.DateFrom = &t
	}
	if v := strings.TrimSpace(q.Get("dateTo")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return Criteria{}, &ParseError{Param: "dateTo", Value: v}
		}
		c.DateTo = &t
	}
	return c, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// StartOfDay returns 00:00:00.000 UTC of t's UTC day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns 23:59:59.999 UTC of t's UTC day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// Predicate is the compiled form of Criteria.
type Predicate struct {
	read    *bool
	starred *bool
	tag     string
	search  string
	from    *time.Time
	to      *time.Time
}

// Build compiles c. Date bounds are widened to whole days so that dateTo
// includes every record created on that day.
func Build(c Criteria) Predicate {
	p := Predicate{
		read:    c.Read,
		starred: c.Starred,
		tag:     c.Tag,
		search:  strings.ToLower(c.Search),
	}
	if c.DateFrom != nil {
		from := StartOfDay(*c.DateFrom)
		p.from = &from
	}
	if c.DateTo != nil {
		to := EndOfDay(*c.DateTo)
		p.to = &to
	}
	return p
}

// NeedsDecryptedScan reports whether the predicate has a criterion that SQL
// cannot evaluate, so candidates must be decrypted and checked with Match.
func (p Predicate) NeedsDecryptedScan() bool {
	return p.search != ""
}

// SQL renders the plaintext-column criteria as a WHERE body joined with AND.
// Placeholders are numbered from startArg. An unconstrained predicate returns
// an empty string and no args.
func (p Predicate) SQL(startArg int) (string, []any) {
	var conds []string
	var args []any

	add := func(format string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, startArg+len(args)-1))
	}

	if p.read != nil {
		add("read = $%d", *p.read)
	}
	if p.starred != nil {
		add("starred = $%d", *p.starred)
	}
	if p.tag != "" {
		add("tags @> ARRAY[$%d]::text[]", p.tag)
	}
	if p.from != nil {
		add("created_at >= $%d", *p.from)
	}
	if p.to != nil {
		add("created_at <= $%d", *p.to)
	}
	return strings.Join(conds, " AND "), args
}

// Match evaluates every criterion against a decrypted message.
func (p Predicate) Match(m *model.Message) bool {
	if p.read != nil && m.Read != *p.read {
		return false
	}
	if p.starred != nil && m.Starred != *p.starred {
		return false
	}
	if p.tag != "" && !hasTag(m.Tags, p.tag) {
		return false
	}
	if p.from != nil && m.CreatedAt.Before(*p.from) {
		return false
	}
	if p.to != nil && m.CreatedAt.After(*p.to) {
		return false
	}
	if p.search != "" && !p.matchSearch(m) {
		return false
	}
	return true
}

func (p Predicate) matchSearch(m *model.Message) bool {
	for _, field := range []string{m.Name, m.Email, m.Phone, m.Message} {
		if strings.Contains(strings.ToLower(field), p.search) {
			return true
		}
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
