package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLite backs sqlite:// URLs and bare file paths via modernc.org/sqlite.
type SQLite struct{}

func (SQLite) Name() string   { return "sqlite" }
func (SQLite) Driver() string { return "sqlite" }

// DataSourceName builds a DSN with WAL mode, a busy timeout and foreign
// keys enabled. SQLite with WAL supports concurrent reads but serializes
// writes.
func (SQLite) DataSourceName(rawURL string) (string, error) {
	path := rawURL
	for _, prefix := range []string{"sqlite3://", "sqlite://", "sqlite3:", "sqlite:"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}
	if path == "" {
		return "", fmt.Errorf("sqlite URL has no database path")
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path), nil
}

func (SQLite) BindType() int { return sqlx.QUESTION }

func (SQLite) QuoteIdent(name string) string {
	return `"` + name + `"`
}

var sqliteTypes = map[ColumnType]string{
	Integer:   "INTEGER",
	BigInt:    "BIGINT",
	Float:     "DOUBLE",
	Text:      "TEXT",
	Boolean:   "BOOLEAN",
	Timestamp: "TIMESTAMP",
	Blob:      "BLOB",
}

func (SQLite) TypeSQL(t ColumnType) (string, error) {
	s, ok := sqliteTypes[t]
	if !ok {
		return "", fmt.Errorf("sqlite has no mapping for column type %s", t)
	}
	return s, nil
}

// PrimaryKeySQL renders the primary key segment. SQLite only supports
// AUTOINCREMENT on an INTEGER PRIMARY KEY column.
func (d SQLite) PrimaryKeySQL(t ColumnType, autoIncrement bool) (string, error) {
	if autoIncrement {
		if t != Integer && t != BigInt {
			return "", fmt.Errorf("autoincrement requires an integer column, got %s", t)
		}
		return "INTEGER PRIMARY KEY AUTOINCREMENT", nil
	}
	ts, err := d.TypeSQL(t)
	if err != nil {
		return "", err
	}
	return ts + " PRIMARY KEY", nil
}

func (SQLite) OptimizeSQL() string { return "PRAGMA optimize" }

func (SQLite) TableExists(ctx context.Context, db *sqlx.DB, table string) (bool, error) {
	var name string
	err := db.QueryRowxContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type sqliteColumnRow struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

type sqliteIndexRow struct {
	Seq     int    `db:"seq"`
	Name    string `db:"name"`
	Unique  int    `db:"unique"`
	Origin  string `db:"origin"`
	Partial int    `db:"partial"`
}

type sqliteIndexColumnRow struct {
	SeqNo int            `db:"seqno"`
	CID   int            `db:"cid"`
	Name  sql.NullString `db:"name"`
}

// Describe reflects the table schema from PRAGMA table_info and the
// index list. PRAGMA statements cannot take bind variables, so the table
// name must already be validated by the caller.
func (d SQLite) Describe(ctx context.Context, db *sqlx.DB, table string) ([]ColumnInfo, error) {
	var cols []sqliteColumnRow
	if err := db.SelectContext(ctx, &cols, fmt.Sprintf("PRAGMA table_info(%s)", d.QuoteIdent(table))); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q does not exist", table)
	}

	unique := map[string]bool{}
	indexed := map[string]bool{}
	var indexes []sqliteIndexRow
	if err := db.SelectContext(ctx, &indexes, fmt.Sprintf("PRAGMA index_list(%s)", d.QuoteIdent(table))); err != nil {
		return nil, err
	}
	for _, idx := range indexes {
		var idxCols []sqliteIndexColumnRow
		if err := db.SelectContext(ctx, &idxCols, fmt.Sprintf("PRAGMA index_info(%s)", d.QuoteIdent(idx.Name))); err != nil {
			return nil, err
		}
		if len(idxCols) != 1 || !idxCols[0].Name.Valid {
			continue
		}
		col := idxCols[0].Name.String
		if idx.Unique == 1 && idx.Origin == "u" {
			unique[col] = true
		}
		if idx.Origin == "c" && strings.HasPrefix(idx.Name, "ix_") {
			indexed[col] = true
		}
	}

	out := make([]ColumnInfo, 0, len(cols))
	for _, c := range cols {
		out = append(out, ColumnInfo{
			Name:       c.Name,
			Type:       sqliteColumnType(c.Type),
			NotNull:    c.NotNull == 1,
			PrimaryKey: c.PK > 0,
			Unique:     unique[c.Name],
			Index:      indexed[c.Name],
			Default:    c.Default.String,
		})
	}
	return out, nil
}

// sqliteColumnType maps a declared type back onto the closed enum using
// the same affinity-style matching SQLite itself applies.
func sqliteColumnType(declared string) ColumnType {
	s := strings.ToUpper(declared)
	switch {
	case strings.Contains(s, "BIGINT"):
		return BigInt
	case strings.Contains(s, "INT"):
		return Integer
	case strings.Contains(s, "BOOL"):
		return Boolean
	case strings.Contains(s, "DOUBLE"), strings.Contains(s, "FLOAT"), strings.Contains(s, "REAL"):
		return Float
	case strings.Contains(s, "TIME"), strings.Contains(s, "DATE"):
		return Timestamp
	case strings.Contains(s, "BLOB"):
		return Blob
	default:
		return Text
	}
}
