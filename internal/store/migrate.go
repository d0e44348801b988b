package store

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/f13-cli/internal/db"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// migrationLockKey serializes concurrent migrators (overlapping deploys).
const migrationLockKey = 1313013

// migrationFiles returns the migration filenames for a dialect in apply order.
func migrationFiles(dialect string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations/"+dialect)
	if err != nil {
		return nil, eris.Wrapf(err, "migrate: read %s migration dir", dialect)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// MigratePostgres applies pending migrations under an advisory lock and
// records each applied file in schema_migrations.
func MigratePostgres(ctx context.Context, pool db.Pool) error {
	log := zap.L().With(zap.String("component", "store.migrate"), zap.String("driver", "postgres"))

	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return eris.Wrap(err, "migrate: acquire advisory lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockKey); err != nil {
			log.Warn("migrate: failed to release advisory lock", zap.Error(err))
		}
	}()

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return eris.Wrap(err, "migrate: ensure migration table")
	}

	applied := make(map[string]bool)
	rows, err := pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return eris.Wrap(err, "migrate: query applied migrations")
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return eris.Wrap(err, "migrate: scan migration row")
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "migrate: iterate migration rows")
	}

	names, err := migrationFiles("postgres")
	if err != nil {
		return err
	}
	for _, name := range names {
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/postgres/" + name)
		if err != nil {
			return eris.Wrapf(err, "migrate: read %s", name)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "migrate: apply %s", name)
		}
		if _, err := pool.Exec(ctx,
			"INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())", name,
		); err != nil {
			return eris.Wrapf(err, "migrate: record %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}

// migrateSQLite applies pending migrations to a SQLite database. SQLite has
// a single writer, so no lock is taken.
func migrateSQLite(ctx context.Context, sqlDB *sql.DB) error {
	log := zap.L().With(zap.String("component", "store.migrate"), zap.String("driver", "sqlite"))

	if _, err := sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return eris.Wrap(err, "migrate: ensure migration table")
	}

	names, err := migrationFiles("sqlite")
	if err != nil {
		return err
	}
	for _, name := range names {
		var n int
		if err := sqlDB.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name,
		).Scan(&n); err != nil {
			return eris.Wrapf(err, "migrate: check %s", name)
		}
		if n > 0 {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/sqlite/" + name)
		if err != nil {
			return eris.Wrapf(err, "migrate: read %s", name)
		}
		if _, err := sqlDB.ExecContext(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "migrate: apply %s", name)
		}
		if _, err := sqlDB.ExecContext(ctx,
			"INSERT INTO schema_migrations (filename) VALUES (?)", name,
		); err != nil {
			return eris.Wrapf(err, "migrate: record %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}
