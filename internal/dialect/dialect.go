// Package dialect abstracts the differences between the supported SQL
// backends: column type DDL, bind variable style, DSN construction and
// schema introspection. Dialects are selected by the database URL scheme.
package dialect

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ColumnType is the closed set of semantic column types understood by the
// manager. Each dialect maps these onto its native DDL type names.
type ColumnType int

const (
	// Integer is a 32-bit signed integer column.
	Integer ColumnType = iota + 1
	// BigInt is a 64-bit signed integer column.
	BigInt
	// Float is a double precision floating point column.
	Float
	// Text is a variable length string column.
	Text
	// Boolean is a true/false column.
	Boolean
	// Timestamp is a point-in-time column.
	Timestamp
	// Blob is a raw bytes column.
	Blob
)

var columnTypeNames = map[ColumnType]string{
	Integer:   "integer",
	BigInt:    "bigint",
	Float:     "float",
	Text:      "text",
	Boolean:   "boolean",
	Timestamp: "timestamp",
	Blob:      "blob",
}

func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("columntype(%d)", int(t))
}

// Valid reports whether t is one of the defined column types.
func (t ColumnType) Valid() bool {
	_, ok := columnTypeNames[t]
	return ok
}

// ParseColumnType maps a type tag string (as used in JSON column
// descriptors) to a ColumnType. Common aliases are accepted.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int":
		return Integer, nil
	case "bigint", "int64":
		return BigInt, nil
	case "float", "double", "real":
		return Float, nil
	case "text", "string", "varchar":
		return Text, nil
	case "boolean", "bool":
		return Boolean, nil
	case "timestamp", "datetime":
		return Timestamp, nil
	case "blob", "bytes":
		return Blob, nil
	}
	return 0, fmt.Errorf("unknown column type %q", s)
}

// ColumnInfo describes one column as reported by schema introspection.
type ColumnInfo struct {
	Name       string
	Type       ColumnType
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Index      bool
	Default    string
}

// Dialect is the per-backend behavior needed by the manager.
type Dialect interface {
	// Name is the short dialect name ("sqlite", "postgres").
	Name() string
	// Driver is the database/sql driver name to open connections with.
	Driver() string
	// DataSourceName converts the user-supplied database URL into a DSN
	// understood by the driver.
	DataSourceName(rawURL string) (string, error)
	// BindType is the sqlx bind variable style for this backend.
	BindType() int
	// QuoteIdent quotes an already-validated identifier.
	QuoteIdent(name string) string
	// TypeSQL renders the DDL type name for a column type.
	TypeSQL(t ColumnType) (string, error)
	// PrimaryKeySQL renders the full type-and-constraint segment for a
	// primary key column, including the autoincrement clause when asked.
	PrimaryKeySQL(t ColumnType, autoIncrement bool) (string, error)
	// OptimizeSQL is the statement that refreshes planner statistics.
	OptimizeSQL() string
	// TableExists reports whether the named table exists.
	TableExists(ctx context.Context, db *sqlx.DB, table string) (bool, error)
	// Describe reflects the live schema of the named table.
	Describe(ctx context.Context, db *sqlx.DB, table string) ([]ColumnInfo, error)
}

// FromURL selects a dialect from the database URL scheme and returns it
// together with the driver DSN. Bare file paths are treated as SQLite
// databases.
func FromURL(rawURL string) (Dialect, string, error) {
	scheme := ""
	if i := strings.Index(rawURL, "://"); i >= 0 {
		scheme = strings.ToLower(rawURL[:i])
	}

	var d Dialect
	switch scheme {
	case "sqlite", "sqlite3", "":
		d = SQLite{}
	case "postgres", "postgresql":
		d = Postgres{}
	default:
		return nil, "", fmt.Errorf("unsupported database URL scheme %q", scheme)
	}

	dsn, err := d.DataSourceName(rawURL)
	if err != nil {
		return nil, "", err
	}
	return d, dsn, nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether name is safe to interpolate as a table or
// column identifier. Everything else must go through bind variables.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}
