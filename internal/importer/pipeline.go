package importer

import (
	"errors"

	"github.com/faunatrack/server/internal/tabular"
)

var ErrImportFailed = errors.New("import failed")

// Coercer turns a normalized record into a typed value or rejects it.
type Coercer[T any] func(Record) (T, *RowError)

// Outcome is the result for one input row, in file order.
type Outcome[T any] struct {
	Line   int
	Value  T
	Reject *RowError
}

func (o Outcome[T]) Accepted() bool { return o.Reject == nil }

// Batch holds one outcome per non-empty input row.
type Batch[T any] struct {
	Outcomes []Outcome[T]
}

// Accepted returns the coerced values in file order.
func (b *Batch[T]) Accepted() []T {
	out := make([]T, 0, len(b.Outcomes))
	for _, o := range b.Outcomes {
		if o.Accepted() {
			out = append(out, o.Value)
		}
	}
	return out
}

// Rejections returns every skip reason in file order.
func (b *Batch[T]) Rejections() []string {
	var out []string
	for _, o := range b.Outcomes {
		if !o.Accepted() {
			out = append(out, o.Reject.Reason)
		}
	}
	return out
}

// Run parses an upload, normalizes its headers and coerces every row.
// Errors returned here are batch-level: unsupported format, unreadable
// bytes, no data rows or missing required columns. Row failures are
// recorded in the batch instead.
func Run[T any](filename string, data []byte, normalizer Normalizer, coerce Coercer[T]) (*Batch[T], error) {
	table, err := tabular.Parse(filename, data)
	if err != nil {
		return nil, err
	}

	records, err := normalizer.Normalize(table)
	if err != nil {
		return nil, err
	}

	batch := &Batch[T]{Outcomes: make([]Outcome[T], 0, len(records))}
	for _, rec := range records {
		value, reject := coerce(rec)
		batch.Outcomes = append(batch.Outcomes, Outcome[T]{Line: rec.Line, Value: value, Reject: reject})
	}
	return batch, nil
}
