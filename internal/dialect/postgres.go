package dialect

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Postgres backs postgres:// and postgresql:// URLs via the pgx stdlib
// driver.
type Postgres struct{}

func (Postgres) Name() string   { return "postgres" }
func (Postgres) Driver() string { return "pgx" }

// DataSourceName validates the URL and passes it through; pgx parses
// postgres URLs natively.
func (Postgres) DataSourceName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid postgres URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("postgres URL has no host")
	}
	return rawURL, nil
}

func (Postgres) BindType() int { return sqlx.DOLLAR }

func (Postgres) QuoteIdent(name string) string {
	return `"` + name + `"`
}

var postgresTypes = map[ColumnType]string{
	Integer:   "INTEGER",
	BigInt:    "BIGINT",
	Float:     "DOUBLE PRECISION",
	Text:      "TEXT",
	Boolean:   "BOOLEAN",
	Timestamp: "TIMESTAMPTZ",
	Blob:      "BYTEA",
}

func (Postgres) TypeSQL(t ColumnType) (string, error) {
	s, ok := postgresTypes[t]
	if !ok {
		return "", fmt.Errorf("postgres has no mapping for column type %s", t)
	}
	return s, nil
}

func (d Postgres) PrimaryKeySQL(t ColumnType, autoIncrement bool) (string, error) {
	ts, err := d.TypeSQL(t)
	if err != nil {
		return "", err
	}
	if autoIncrement {
		if t != Integer && t != BigInt {
			return "", fmt.Errorf("autoincrement requires an integer column, got %s", t)
		}
		return ts + " GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY", nil
	}
	return ts + " PRIMARY KEY", nil
}

func (Postgres) OptimizeSQL() string { return "ANALYZE" }

func (Postgres) TableExists(ctx context.Context, db *sqlx.DB, table string) (bool, error) {
	var exists bool
	err := db.QueryRowxContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, table).Scan(&exists)
	return exists, err
}

type postgresColumnRow struct {
	Name     string `db:"column_name"`
	DataType string `db:"data_type"`
	Nullable string `db:"is_nullable"`
	Default  string `db:"col_default"`
}

func (d Postgres) Describe(ctx context.Context, db *sqlx.DB, table string) ([]ColumnInfo, error) {
	var cols []postgresColumnRow
	err := db.SelectContext(ctx, &cols, `
		SELECT column_name, data_type, is_nullable,
		       COALESCE(column_default, '') AS col_default
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q does not exist", table)
	}

	primary, err := d.constraintColumns(ctx, db, table, "PRIMARY KEY")
	if err != nil {
		return nil, err
	}
	unique, err := d.constraintColumns(ctx, db, table, "UNIQUE")
	if err != nil {
		return nil, err
	}

	indexed := map[string]bool{}
	var indexNames []string
	if err := db.SelectContext(ctx, &indexNames, `
		SELECT indexname FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = $1 AND indexname LIKE 'ix\_%'`, table); err != nil {
		return nil, err
	}
	for _, name := range indexNames {
		// Secondary indexes are named ix_<table>_<column> at creation.
		if col, ok := strings.CutPrefix(name, "ix_"+table+"_"); ok {
			indexed[col] = true
		}
	}

	out := make([]ColumnInfo, 0, len(cols))
	for _, c := range cols {
		out = append(out, ColumnInfo{
			Name:       c.Name,
			Type:       postgresColumnType(c.DataType),
			NotNull:    c.Nullable == "NO",
			PrimaryKey: primary[c.Name],
			Unique:     unique[c.Name],
			Index:      indexed[c.Name],
			Default:    c.Default,
		})
	}
	return out, nil
}

func (Postgres) constraintColumns(ctx context.Context, db *sqlx.DB, table, kind string) (map[string]bool, error) {
	var names []string
	err := db.SelectContext(ctx, &names, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = current_schema()
		  AND tc.table_name = $1 AND tc.constraint_type = $2`, table, kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}

func postgresColumnType(dataType string) ColumnType {
	switch strings.ToLower(dataType) {
	case "integer", "smallint":
		return Integer
	case "bigint":
		return BigInt
	case "double precision", "real", "numeric":
		return Float
	case "boolean":
		return Boolean
	case "bytea":
		return Blob
	default:
		if strings.HasPrefix(strings.ToLower(dataType), "timestamp") {
			return Timestamp
		}
		return Text
	}
}
