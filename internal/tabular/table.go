package tabular

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a supported upload format, derived from the file extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// Row is one data row. Line is the row's position in the file with the
// header as line 1, so the first data row is line 2.
type Row struct {
	Line  int
	Cells map[string]Cell
}

// Get returns the cell under header, or Missing when the row has none.
func (r Row) Get(header string) Cell {
	return r.Cells[header]
}

func (r Row) empty() bool {
	for _, c := range r.Cells {
		if !c.IsMissing() {
			return false
		}
	}
	return true
}

// Table is a parsed upload: the header row in file order and every
// non-empty data row keyed by header.
type Table struct {
	Headers []string
	Rows    []Row
}

// DetectFormat maps a filename to a Format by its extension, ignoring case.
func DetectFormat(filename string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(filename)), "."))
	switch ext {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// Parse reads an uploaded file into a Table. Only the first worksheet of a
// workbook is read.
func Parse(filename string, data []byte) (*Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	var table *Table
	switch format {
	case FormatCSV:
		table, err = parseCSV(data)
	default:
		table, err = parseWorkbook(format, data)
	}
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, ErrEmptyInput
	}
	return table, nil
}

// buildTable assembles rows from a header line and raw data lines. Blank
// headers drop their column; repeated headers get a numeric suffix.
func buildTable(rawHeaders []string, records [][]Cell) *Table {
	headers := make([]string, len(rawHeaders))
	seen := make(map[string]int, len(rawHeaders))
	kept := make([]string, 0, len(rawHeaders))
	for i, h := range rawHeaders {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n+1)
		} else {
			seen[h] = 0
		}
		headers[i] = h
		kept = append(kept, h)
	}

	table := &Table{Headers: kept}
	line := 1
	for _, record := range records {
		line++
		row := Row{Line: line, Cells: make(map[string]Cell, len(kept))}
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				row.Cells[header] = record[i]
			} else {
				row.Cells[header] = Missing()
			}
		}
		if row.empty() {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
