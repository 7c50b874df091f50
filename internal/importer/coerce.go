package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/faunatrack/server/internal/tabular"
)

const DateLayout = "2006-01-02"

// RowError rejects a single row. Its message is the user-facing skip reason.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string { return e.Reason }

// Rejectf builds a RowError whose reason is prefixed with the row number.
func Rejectf(line int, format string, args ...any) *RowError {
	return &RowError{
		Line:   line,
		Reason: fmt.Sprintf("row %d: ", line) + fmt.Sprintf(format, args...),
	}
}

// OptionalString returns the trimmed text of a cell, or "" when the cell is
// missing or holds a missing-value marker.
func OptionalString(c tabular.Cell) string {
	if c.IsMissing() {
		return ""
	}
	s := strings.TrimSpace(c.Raw())
	if tabular.IsNAToken(s) {
		return ""
	}
	return s
}

// RequiredString is OptionalString that rejects the row when the field is
// empty.
func RequiredString(rec Record, field string) (string, *RowError) {
	s := OptionalString(rec.Cell(field))
	if s == "" {
		return "", Rejectf(rec.Line, "missing %s", field)
	}
	return s, nil
}

// DateValue accepts a structured date or a YYYY-MM-DD string. The result is
// truncated to the calendar day in UTC.
func DateValue(c tabular.Cell) (time.Time, bool) {
	switch c.Kind() {
	case tabular.KindDate:
		t, _ := c.Time()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	case tabular.KindString:
		s, _ := c.Str()
		t, err := time.Parse(DateLayout, strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// AmountValue reads a budget amount. Missing and blank cells count as
// zero. Text amounts may use spaces as thousands separators and a comma as
// the decimal mark when one or two digits follow it. Any other comma, as in
// "5,000", makes the amount invalid.
func AmountValue(c tabular.Cell) (float64, bool) {
	switch c.Kind() {
	case tabular.KindMissing:
		return 0, true
	case tabular.KindNumber:
		f, _ := c.Num()
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case tabular.KindString:
		s, _ := c.Str()
		return parseAmount(s)
	default:
		return 0, false
	}
}

func parseAmount(raw string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if s == "" || tabular.IsNAToken(s) {
		return 0, true
	}
	if isDecimalComma(s) {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isDecimalComma reports whether s holds a single comma, no dot, and one or
// two digits after the comma.
func isDecimalComma(s string) bool {
	i := strings.IndexByte(s, ',')
	if i < 0 || strings.Count(s, ",") != 1 || strings.Contains(s, ".") {
		return false
	}
	frac := s[i+1:]
	if len(frac) == 0 || len(frac) > 2 {
		return false
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CheckLength rejects the row when value is longer than limit characters.
// A zero limit means unbounded.
func CheckLength(rec Record, field, value string, limit int) *RowError {
	if limit > 0 && utf8.RuneCountInString(value) > limit {
		return Rejectf(rec.Line, "%s too long (max %d characters)", field, limit)
	}
	return nil
}
