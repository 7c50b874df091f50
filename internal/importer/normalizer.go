package importer

import (
	"errors"
	"strings"

	"github.com/faunatrack/server/internal/tabular"
)

var ErrMissingColumns = errors.New("missing columns")

// MissingColumnsError lists the required fields absent from every header.
type MissingColumnsError struct {
	Fields []string
}

func (e *MissingColumnsError) Error() string {
	return "missing columns: " + strings.Join(e.Fields, ", ")
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// Record is a data row keyed by canonical field name.
type Record struct {
	Line   int
	Fields map[string]tabular.Cell
}

// Cell returns the value for a canonical field, Missing when absent.
func (r Record) Cell(field string) tabular.Cell {
	return r.Fields[field]
}

// Normalizer renames table headers to canonical fields and enforces the
// presence of a required field set.
type Normalizer struct {
	Synonyms SynonymTable
	Required []string
}

// Normalize rewrites every row through the synonym table. It fails with a
// *MissingColumnsError before touching any row when a required field has no
// column.
func (n Normalizer) Normalize(table *tabular.Table) ([]Record, error) {
	mapping := make(map[string]string, len(table.Headers))
	present := make(map[string]bool, len(table.Headers))
	for _, header := range table.Headers {
		name, ok := n.Synonyms.Lookup(header)
		if !ok {
			name = strings.TrimSpace(header)
		}
		if present[name] {
			continue
		}
		mapping[header] = name
		present[name] = true
	}

	var missing []string
	for _, field := range n.Required {
		if !present[field] {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Fields: missing}
	}

	records := make([]Record, 0, len(table.Rows))
	for _, row := range table.Rows {
		fields := make(map[string]tabular.Cell, len(mapping))
		for header, name := range mapping {
			fields[name] = row.Get(header)
		}
		records = append(records, Record{Line: row.Line, Fields: fields})
	}
	return records, nil
}
