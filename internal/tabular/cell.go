package tabular

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies which variant a Cell holds.
type Kind int

const (
	KindMissing Kind = iota
	KindString
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "missing"
	}
}

// Cell is a single spreadsheet value. The zero value is Missing.
type Cell struct {
	kind Kind
	str  string
	num  float64
	date time.Time
}

func Missing() Cell { return Cell{} }

func String(s string) Cell { return Cell{kind: KindString, str: s} }

func Number(f float64) Cell { return Cell{kind: KindNumber, num: f} }

func Date(t time.Time) Cell { return Cell{kind: KindDate, date: t} }

func (c Cell) Kind() Kind { return c.kind }

func (c Cell) IsMissing() bool { return c.kind == KindMissing }

// Str returns the raw text of a String cell.
func (c Cell) Str() (string, bool) { return c.str, c.kind == KindString }

func (c Cell) Num() (float64, bool) { return c.num, c.kind == KindNumber }

func (c Cell) Time() (time.Time, bool) { return c.date, c.kind == KindDate }

// Raw renders the cell as it would appear in a delimited text file.
func (c Cell) Raw() string {
	switch c.kind {
	case KindString:
		return c.str
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindDate:
		if c.date.Hour() == 0 && c.date.Minute() == 0 && c.date.Second() == 0 && c.date.Nanosecond() == 0 {
			return c.date.Format("2006-01-02")
		}
		return c.date.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// naTokens are the textual markers spreadsheets and exports use for absent
// values. They are matched case-sensitively after trimming.
var naTokens = map[string]struct{}{
	"":         {},
	"NA":       {},
	"N/A":      {},
	"NaN":      {},
	"nan":      {},
	"NULL":     {},
	"null":     {},
	"None":     {},
	"#N/A":     {},
	"<NA>":     {},
	"-NaN":     {},
	"-nan":     {},
	"n/a":      {},
	"#NA":      {},
	"#N/A N/A": {},
	"-1.#IND":  {},
	"1.#IND":   {},
	"-1.#QNAN": {},
	"1.#QNAN":  {},
}

// IsNAToken reports whether s marks an absent value.
func IsNAToken(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

// textCell classifies a raw text field from a delimited file.
func textCell(raw string) Cell {
	if IsNAToken(raw) {
		return Missing()
	}
	return String(raw)
}
