package database

import (
	"context"
	"embed"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one version-numbered schema change.
type Migration struct {
	ID   int
	Name string
	SQL  string
}

// LoadMigrations reads every *.sql file embedded under migrations/, ordered
// by the leading numeric id in its filename (e.g. "0001_init.sql"), using
// Go's native embed.FS rather than an external asset embedder.
func LoadMigrations() ([]Migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, errors.Wrap(err, "reading embedded migrations")
	}
	migrations := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		idStr, _, found := strings.Cut(entry.Name(), "_")
		if !found {
			return nil, errors.Errorf("migration filename %q missing numeric prefix", entry.Name())
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, errors.Wrapf(err, "migration filename %q has non-numeric prefix", entry.Name())
		}
		content, err := migrationFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "reading migration %q", entry.Name())
		}
		migrations = append(migrations, Migration{ID: id, Name: entry.Name(), SQL: string(content)})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].ID < migrations[j].ID })
	return migrations, nil
}

// ExecFunc and QueryRowFunc adapt pgx's concrete Exec/QueryRow signatures at
// the call site in store packages, so UpdateDatabase itself has no direct
// pgx import.
type ExecFunc func(ctx context.Context, sql string, args ...interface{}) error

type QueryRowFunc func(ctx context.Context, sql string, args ...interface{}) ScanFunc

// ScanFunc scans a single row's columns into dest.
type ScanFunc func(dest ...interface{}) error

// UpdateDatabase applies every migration newer than the currently recorded
// version, tracked in a `database_version` sequence, and records progress
// after each migration so partial failures resume correctly.
func UpdateDatabase(ctx context.Context, exec ExecFunc, queryRow QueryRowFunc, migrations []Migration) error {
	if err := exec(ctx, `CREATE SEQUENCE IF NOT EXISTS database_version START WITH 0 MINVALUE 0`); err != nil {
		return errors.Wrap(err, "creating database_version sequence")
	}

	var version int
	if err := queryRow(ctx, `SELECT last_value FROM database_version`)(&version); err != nil {
		return errors.Wrap(err, "reading database version")
	}

	for _, m := range migrations {
		if m.ID <= version {
			continue
		}
		if err := exec(ctx, m.SQL); err != nil {
			return errors.Wrapf(err, "applying migration %q", m.Name)
		}
		if err := exec(ctx, `SELECT setval('database_version', $1)`, m.ID); err != nil {
			return errors.Wrapf(err, "recording migration %q version", m.Name)
		}
		version = m.ID
	}
	return nil
}
