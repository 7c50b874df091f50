package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/faunatrack/server/internal/db"
)

//go:embed sql
var migrations embed.FS

// Run applies every embedded migration for the database's dialect that is
// not yet recorded in schema_migrations. Each file runs in its own
// transaction.
func Run(ctx context.Context, database *db.DB) error {
	if err := ensureMigrationTable(ctx, database); err != nil {
		return err
	}

	files, err := Files(database.Dialect())
	if err != nil {
		return err
	}

	for _, file := range files {
		version := path.Base(file)
		applied, err := isApplied(ctx, database, version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		script, err := migrations.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		uow := db.NewUnitOfWork(database)
		err = uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			if _, err := tx.ExecContext(ctx, string(script)); err != nil {
				return fmt.Errorf("apply migration %s: %w", version, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`,
				version, db.FormatTimestamp(time.Now()),
			); err != nil {
				return fmt.Errorf("track migration %s: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Files lists the migration scripts for a dialect in apply order.
func Files(dialect db.Dialect) ([]string, error) {
	dir := path.Join("sql", dialect.String())
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations for %s: %w", dialect, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, path.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func ensureMigrationTable(ctx context.Context, database *db.DB) error {
	_, err := database.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at VARCHAR(40) NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	return nil
}

func isApplied(ctx context.Context, database *db.DB, version string) (bool, error) {
	var v string
	err := database.QueryRowContext(ctx, `SELECT version FROM schema_migrations WHERE version = $1`, version).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return true, nil
}
