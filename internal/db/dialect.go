package db

import (
	"fmt"
	"regexp"
)

// Dialect names the SQL backend behind a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) String() string { return string(d) }

var ordinalPlaceholder = regexp.MustCompile(`\$\d+`)

// Rebind rewrites $N placeholders for backends that only accept '?'.
// Queries must reference each ordinal once and in ascending order.
func (d Dialect) Rebind(query string) string {
	if d == Postgres {
		return query
	}
	return ordinalPlaceholder.ReplaceAllString(query, "?")
}

func driverName(d Dialect) (string, error) {
	switch d {
	case Postgres:
		return "pgx", nil
	case MySQL:
		return "mysql", nil
	case SQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unknown dialect %q", d)
	}
}
