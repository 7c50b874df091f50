package tabular

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

func parseWorkbook(format Format, data []byte) (*Table, error) {
	if format == FormatXLS && bytes.HasPrefix(data, oleMagic) {
		return nil, fmt.Errorf("%w: legacy binary .xls workbooks are not supported, save the file as .xlsx", ErrParse)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmptyInput
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	reader := sheetReader{file: f, sheet: sheet, dateStyles: map[int]bool{}}
	records := make([][]Cell, 0, len(rows)-1)
	for r, values := range rows[1:] {
		cells := make([]Cell, len(values))
		for c, raw := range values {
			cell, err := reader.cell(c+1, r+2, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParse, err)
			}
			cells[c] = cell
		}
		records = append(records, cells)
	}

	return buildTable(rows[0], records), nil
}

type sheetReader struct {
	file       *excelize.File
	sheet      string
	dateStyles map[int]bool
}

// cell classifies the raw value at (col, row) using the stored cell type
// and, for numbers, the number format applied to the cell.
func (s sheetReader) cell(col, row int, raw string) (Cell, error) {
	if strings.TrimSpace(raw) == "" {
		return Missing(), nil
	}

	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Cell{}, err
	}
	typ, err := s.file.GetCellType(s.sheet, ref)
	if err != nil {
		return Cell{}, err
	}

	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeFormula:
		num, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return textCell(raw), nil
		}
		isDate, err := s.hasDateFormat(ref)
		if err != nil {
			return Cell{}, err
		}
		if isDate {
			t, err := excelize.ExcelDateToTime(num, false)
			if err != nil {
				return Number(num), nil
			}
			return Date(t), nil
		}
		return Number(num), nil
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return Date(t), nil
		}
		return textCell(raw), nil
	case excelize.CellTypeError:
		return Missing(), nil
	default:
		return textCell(raw), nil
	}
}

func (s sheetReader) hasDateFormat(ref string) (bool, error) {
	styleID, err := s.file.GetCellStyle(s.sheet, ref)
	if err != nil {
		return false, err
	}
	if isDate, ok := s.dateStyles[styleID]; ok {
		return isDate, nil
	}

	style, err := s.file.GetStyle(styleID)
	if err != nil {
		return false, err
	}
	isDate := isDateNumFmt(style.NumFmt)
	if style.CustomNumFmt != nil {
		isDate = isDateFormatCode(*style.CustomNumFmt)
	}
	s.dateStyles[styleID] = isDate
	return isDate, nil
}

// isDateNumFmt reports whether a built-in number format id renders a date.
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36:
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode inspects a custom format code for day or year tokens,
// ignoring quoted literals, escaped characters and bracketed sections.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	quoted, bracket, escaped := false, false, false
	for _, r := range code {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	stripped := strings.ToLower(b.String())
	if strings.Contains(stripped, "general") {
		return false
	}
	return strings.ContainsAny(stripped, "dy")
}

func parseISODate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
