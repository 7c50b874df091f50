package db

import "time"

const (
	// DateLayout stores calendar dates as sortable text.
	DateLayout = "2006-01-02"
	// timestampLayout is fixed width so text ordering matches time ordering.
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
