package species

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/faunatrack/server/internal/db"
)

func insertSpecies(ctx context.Context, q db.DBTX, s Species) error {
	var createdBy any
	if s.CreatedBy != "" {
		createdBy = s.CreatedBy
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO species (id, common_name, scientific_name, scientific_name_key, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.CommonName, s.ScientificName, nameKey(s.ScientificName), s.Description, createdBy, db.FormatTimestamp(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert species: %w", err)
	}
	return nil
}

// scientificNameExists compares names by their folded key, so the match is
// case-insensitive for non-ASCII letters on every dialect.
func scientificNameExists(ctx context.Context, q db.DBTX, name string) (bool, error) {
	var id string
	err := q.QueryRowContext(ctx, `
		SELECT id FROM species WHERE scientific_name_key = $1 LIMIT 1
	`, nameKey(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup species %q: %w", name, err)
	}
	return true, nil
}

func listSpecies(ctx context.Context, q db.DBTX) ([]Species, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, common_name, scientific_name, description, COALESCE(created_by, ''), created_at
		FROM species
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query species: %w", err)
	}
	defer rows.Close()

	var out []Species
	for rows.Next() {
		var (
			s         Species
			createdAt string
		)
		if err := rows.Scan(&s.ID, &s.CommonName, &s.ScientificName, &s.Description, &s.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan species: %w", err)
		}
		if s.CreatedAt, err = db.ParseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("species %s created_at: %w", s.ID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate species: %w", err)
	}
	return out, nil
}
