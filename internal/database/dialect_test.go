package database

import (
	"strings"
	"testing"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		input   string
		driver  string
		wantErr bool
	}{
		{input: "", driver: "sqlite3"},
		{input: "sqlite", driver: "sqlite3"},
		{input: "SQLite3", driver: "sqlite3"},
		{input: "postgres", driver: "postgres"},
		{input: "postgresql", driver: "postgres"},
		{input: "mysql", driver: "mysql"},
		{input: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			dialect, err := DialectFor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DialectFor(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && dialect.DriverName() != tt.driver {
				t.Errorf("DriverName() = %v, want %v", dialect.DriverName(), tt.driver)
			}
		})
	}
}

func TestDialectMigrationsSubdir(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{NewSQLiteDialect(), "sqlite"},
		{NewPostgresDialect(), "postgres"},
		{NewMySQLDialect(), "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.dialect.MigrationsSubdir(); got != tt.want {
				t.Errorf("MigrationsSubdir() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT kv_value FROM kv_store WHERE kv_key = ?",
			expected: "SELECT kv_value FROM kv_store WHERE kv_key = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT kids FROM families WHERE id = ?",
			expected: "SELECT kids FROM families WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO families (id, kids, pin) VALUES (?, ?, ?)",
			expected: "INSERT INTO families (id, kids, pin) VALUES ($1, $2, $3)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE users SET name = ?, email = ? WHERE id = ?",
			expected: "UPDATE users SET name = ?, email = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestUpsertStatements(t *testing.T) {
	pg := NewPostgresDialect()
	rewritten := pg.RewriteQuery(pg.UpsertFamily())
	if !strings.Contains(rewritten, "$5") || strings.Contains(rewritten, "?") {
		t.Errorf("postgres family upsert not fully numbered: %s", rewritten)
	}

	my := NewMySQLDialect()
	if !strings.Contains(my.UpsertKV(), "ON DUPLICATE KEY UPDATE") {
		t.Errorf("mysql kv upsert should use ON DUPLICATE KEY UPDATE: %s", my.UpsertKV())
	}
	if strings.Count(my.UpsertFamily(), "?") != 5 {
		t.Errorf("mysql family upsert should take 5 arguments: %s", my.UpsertFamily())
	}
	if strings.Count(my.InsertFamily(), "?") != 5 || !strings.Contains(pg.InsertFamily(), "DO NOTHING") {
		t.Errorf("family insert should take 5 arguments and skip taken ids")
	}
}

func TestSplitStatements(t *testing.T) {
	content := "CREATE TABLE a (id TEXT);\n\nCREATE INDEX i ON a (id);\n"
	stmts := splitStatements(content)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[1] != "CREATE INDEX i ON a (id)" {
		t.Errorf("unexpected second statement %q", stmts[1])
	}
}
