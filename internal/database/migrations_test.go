package database

import (
	"context"
	"testing"
)

func TestLoadMigrationsReadsEmbeddedFilesInOrder(t *testing.T) {
	migrations, err := LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].ID >= migrations[i].ID {
			t.Fatalf("migrations not sorted ascending by id: %v", migrations)
		}
	}
	if migrations[0].SQL == "" {
		t.Fatal("expected migration SQL to be non-empty")
	}
}

type fakeDB struct {
	execCalls []string
	execArgs  [][]interface{}
	version   int
}

func (f *fakeDB) exec(ctx context.Context, sql string, args ...interface{}) error {
	f.execCalls = append(f.execCalls, sql)
	f.execArgs = append(f.execArgs, args)
	return nil
}

func (f *fakeDB) queryRow(ctx context.Context, sql string, args ...interface{}) ScanFunc {
	return func(dest ...interface{}) error {
		*dest[0].(*int) = f.version
		return nil
	}
}

func TestUpdateDatabaseAppliesOnlyNewerMigrations(t *testing.T) {
	db := &fakeDB{version: 1}
	migrations := []Migration{
		{ID: 1, Name: "0001_init.sql", SQL: "-- already applied"},
		{ID: 2, Name: "0002_add_column.sql", SQL: "ALTER TABLE x ADD COLUMN y INT"},
		{ID: 3, Name: "0003_add_index.sql", SQL: "CREATE INDEX ON x(y)"},
	}

	if err := UpdateDatabase(context.Background(), db.exec, db.queryRow, migrations); err != nil {
		t.Fatalf("UpdateDatabase: %v", err)
	}

	for _, call := range db.execCalls {
		if call == "-- already applied" {
			t.Fatal("expected migration 1 (already at recorded version) to be skipped")
		}
	}

	var appliedSQL int
	for _, call := range db.execCalls {
		if call == "ALTER TABLE x ADD COLUMN y INT" || call == "CREATE INDEX ON x(y)" {
			appliedSQL++
		}
	}
	if appliedSQL != 2 {
		t.Fatalf("expected 2 pending migrations applied, got %d calls: %v", appliedSQL, db.execCalls)
	}
}

func TestUpdateDatabaseCreatesVersionSequence(t *testing.T) {
	db := &fakeDB{version: 0}
	if err := UpdateDatabase(context.Background(), db.exec, db.queryRow, nil); err != nil {
		t.Fatalf("UpdateDatabase: %v", err)
	}
	if len(db.execCalls) == 0 {
		t.Fatal("expected at least the sequence-creation exec call")
	}
}
