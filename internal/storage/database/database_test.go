package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "journal.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := db.Migrate(ctx); err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, "0001").Scan(&count); err != nil {
		t.Fatalf("query migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected migration recorded once, got %d", count)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	insert := `INSERT INTO commands (id, text, status, message, created_at, updated_at) VALUES (?, ?, ?, '', ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "c1", "check balance", "pending", 1, 1); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := db.ExecContext(ctx, insert, "c1", "check balance", "pending", 1, 1)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(errors.New("other")) {
		t.Fatalf("plain errors are not unique violations")
	}
}

func TestRebind(t *testing.T) {
	query := `UPDATE commands SET status = ?, message = '?' WHERE id = ? AND status IN (?, ?)`
	got := Rebind(DialectPostgres, query)
	want := `UPDATE commands SET status = $1, message = '?' WHERE id = $2 AND status IN ($3, $4)`
	if got != want {
		t.Fatalf("unexpected rebind:\n got %s\nwant %s", got, want)
	}
	if Rebind(DialectMySQL, query) != query {
		t.Fatalf("mysql queries must be left untouched")
	}
}

func TestParseDialect(t *testing.T) {
	cases := map[string]Dialect{"MySQL": DialectMySQL, "postgresql": DialectPostgres, "sqlite3": DialectSQLite}
	for in, want := range cases {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
