// Package parser turns pasted text and spreadsheet rows into violation records.
package parser

import (
	"regexp"
	"strings"
	"time"

	"vipham/internal/domain"

	"github.com/google/uuid"
)

const DefaultSeparator = "-"

var classCodeRegex = regexp.MustCompile(`\b\d{1,2}[a-zA-Z]\d{0,2}\b`)

// Normalizer maps a raw violation phrase to its canonical label.
type Normalizer interface {
	Normalize(raw string) string
}

// Parser converts raw input into records. The zero value is not usable; build
// one with New.
type Parser struct {
	normalizer Normalizer
	separator  string
	now        func() time.Time
	newID      func() string
}

type Option func(*Parser)

// WithSeparator sets the field delimiter used by text mode.
func WithSeparator(sep string) Option {
	return func(p *Parser) {
		if sep != "" {
			p.separator = sep
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

func New(n Normalizer, opts ...Option) *Parser {
	p := &Parser{
		normalizer: n,
		separator:  DefaultSeparator,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) Separator() string {
	return p.separator
}

// ParseText parses one record per line. Lines that match neither the separated
// form nor the class-code form are skipped.
func (p *Parser) ParseText(text string) []domain.Record {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	records := make([]domain.Record, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rec, ok := p.parseLine(line)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (p *Parser) parseLine(line string) (domain.Record, bool) {
	var name, class, violation string
	if strings.Contains(line, p.separator) {
		parts := strings.Split(line, p.separator)
		if len(parts) < 3 {
			return domain.Record{}, false
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		name = parts[0]
		class = parts[1]
		violation = strings.TrimSpace(strings.Join(parts[2:], p.separator))
	} else {
		loc := classCodeRegex.FindStringIndex(line)
		if loc == nil {
			return domain.Record{}, false
		}
		name = strings.TrimSpace(line[:loc[0]])
		class = line[loc[0]:loc[1]]
		violation = strings.TrimSpace(line[loc[1]:])
		if name == "" || violation == "" {
			return domain.Record{}, false
		}
	}
	return p.newRecord(name, class, violation)
}

func (p *Parser) newRecord(name, class, rawViolation string) (domain.Record, bool) {
	rec := domain.Record{
		FullName:  name,
		ClassName: class,
		Violation: p.normalizer.Normalize(rawViolation),
	}
	if !rec.Valid() {
		return domain.Record{}, false
	}
	rec.ID = p.newID()
	rec.Timestamp = p.now()
	return rec, true
}
