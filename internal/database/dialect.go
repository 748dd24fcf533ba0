package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// UpsertKV returns the insert-or-replace statement for the kv_store table.
	// Arguments: key, value.
	UpsertKV() string

	// UpsertFamily returns the insert-or-replace statement for the families table.
	// Arguments: id, kids, pin, writer, updated_at.
	UpsertFamily() string

	// InsertFamily returns an insert for the families table that leaves an
	// existing row untouched and affects zero rows in that case.
	// Arguments: id, kids, pin, writer, updated_at.
	InsertFamily() string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// ON CONFLICT statements shared by SQLite and PostgreSQL
const (
	upsertKVOnConflict = `INSERT INTO kv_store (kv_key, kv_value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (kv_key) DO UPDATE SET kv_value = excluded.kv_value, updated_at = CURRENT_TIMESTAMP`

	upsertFamilyOnConflict = `INSERT INTO families (id, kids, pin, writer, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET kids = excluded.kids, pin = excluded.pin,
		writer = excluded.writer, updated_at = excluded.updated_at`

	insertFamilyOnConflict = `INSERT INTO families (id, kids, pin, writer, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`
)
