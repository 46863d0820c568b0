package dbmanager

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tablekit/tablekit/internal/dberr"
	"github.com/tablekit/tablekit/internal/dialect"
)

// ColumnType re-exports the dialect type enum for callers of this
// package.
type ColumnType = dialect.ColumnType

const (
	Integer   = dialect.Integer
	BigInt    = dialect.BigInt
	Float     = dialect.Float
	Text      = dialect.Text
	Boolean   = dialect.Boolean
	Timestamp = dialect.Timestamp
	Blob      = dialect.Blob
)

// ColumnOptions are the optional constraints of a column descriptor.
type ColumnOptions struct {
	PrimaryKey    bool
	AutoIncrement bool
	// NotNull inverts the default nullable behavior of a column.
	NotNull bool
	Unique  bool
	// Index creates a secondary index named ix_<table>_<column>.
	Index bool
	// Default is rendered as the column's DEFAULT literal. Supported
	// value types: string, bool, integers and floats.
	Default any
}

// Column is one column descriptor for CreateTable. Name and Type are
// required.
type Column struct {
	Name    string
	Type    ColumnType
	Options ColumnOptions
}

// CreateTable creates the named table from the ordered column
// descriptors, plus any secondary indexes they request. Existing tables
// are left untouched (if-not-exists semantics). Malformed descriptors
// fail with a schema error before anything is executed.
func (m *Manager) CreateTable(ctx context.Context, table string, columns []Column) error {
	const op = "dbmanager.CreateTable"

	db, err := m.conn(op)
	if err != nil {
		return err
	}
	if err := validTableName(op, table); err != nil {
		return m.fail(err)
	}
	if len(columns) == 0 {
		return m.fail(dberr.New(dberr.Schema, op, "at least one column is required"))
	}

	defs := make([]string, 0, len(columns))
	var indexes []string
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if col.Name == "" {
			return m.fail(dberr.New(dberr.Schema, op, "column descriptor is missing a name"))
		}
		if !dialect.ValidIdent(col.Name) {
			return m.fail(dberr.Newf(dberr.Schema, op, "invalid column name %q", col.Name))
		}
		if seen[col.Name] {
			return m.fail(dberr.Newf(dberr.Schema, op, "duplicate column %q", col.Name))
		}
		seen[col.Name] = true
		if !col.Type.Valid() {
			return m.fail(dberr.Newf(dberr.Schema, op, "column %q is missing a valid type", col.Name))
		}
		if col.Options.AutoIncrement && !col.Options.PrimaryKey {
			return m.fail(dberr.Newf(dberr.Schema, op, "column %q declares autoincrement without primary_key", col.Name))
		}

		def, err := m.columnSQL(col)
		if err != nil {
			return m.fail(dberr.Wrap(err, dberr.Schema, op, fmt.Sprintf("column %q", col.Name)))
		}
		defs = append(defs, def)

		if col.Options.Index {
			indexes = append(indexes, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				m.d.QuoteIdent("ix_"+table+"_"+col.Name),
				m.d.QuoteIdent(table),
				m.d.QuoteIdent(col.Name),
			))
		}
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		m.d.QuoteIdent(table), strings.Join(defs, ", "))

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return m.fail(dberr.Wrap(err, dberr.Schema, op, "failed to begin transaction"))
	}
	for _, stmt := range append([]string{ddl}, indexes...) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return m.fail(dberr.Wrap(err, dberr.Schema, op, fmt.Sprintf("failed to create table %q", table)))
		}
	}
	if err := tx.Commit(); err != nil {
		return m.fail(dberr.Wrap(err, dberr.Schema, op, "failed to commit schema change"))
	}

	m.log.Info().Str("table", table).Int("columns", len(columns)).Msg("Table created")
	return nil
}

// Table reflects the live schema of the named table back into column
// descriptors.
func (m *Manager) Table(ctx context.Context, table string) ([]Column, error) {
	const op = "dbmanager.Table"

	db, err := m.conn(op)
	if err != nil {
		return nil, err
	}
	if err := validTableName(op, table); err != nil {
		return nil, m.fail(err)
	}

	exists, err := m.d.TableExists(ctx, db, table)
	if err != nil {
		return nil, m.fail(dberr.Wrap(err, dberr.Schema, op, "failed to check table existence"))
	}
	if !exists {
		return nil, m.fail(dberr.Newf(dberr.Schema, op, "table %q does not exist", table))
	}

	infos, err := m.d.Describe(ctx, db, table)
	if err != nil {
		return nil, m.fail(dberr.Wrap(err, dberr.Schema, op, fmt.Sprintf("failed to describe table %q", table)))
	}

	cols := make([]Column, 0, len(infos))
	for _, info := range infos {
		col := Column{
			Name: info.Name,
			Type: info.Type,
			Options: ColumnOptions{
				PrimaryKey: info.PrimaryKey,
				NotNull:    info.NotNull,
				Unique:     info.Unique,
				Index:      info.Index,
			},
		}
		if info.Default != "" {
			col.Options.Default = info.Default
		}
		cols = append(cols, col)
	}
	m.log.Debug().Str("table", table).Int("columns", len(cols)).Msg("Table described")
	return cols, nil
}

// DropTable drops the named table after checking the deletion password.
func (m *Manager) DropTable(ctx context.Context, table, password string) error {
	const op = "dbmanager.DropTable"

	db, err := m.conn(op)
	if err != nil {
		return err
	}
	if err := validTableName(op, table); err != nil {
		return m.fail(err)
	}
	if err := m.authorize(op, password); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "DROP TABLE "+m.d.QuoteIdent(table)); err != nil {
		return m.fail(dberr.Wrap(err, dberr.Schema, op, fmt.Sprintf("failed to drop table %q", table)))
	}
	m.log.Info().Str("table", table).Msg("Table dropped")
	return nil
}

func (m *Manager) columnSQL(col Column) (string, error) {
	name := m.d.QuoteIdent(col.Name)

	if col.Options.PrimaryKey {
		seg, err := m.d.PrimaryKeySQL(col.Type, col.Options.AutoIncrement)
		if err != nil {
			return "", err
		}
		return name + " " + seg, nil
	}

	ts, err := m.d.TypeSQL(col.Type)
	if err != nil {
		return "", err
	}
	parts := []string{name, ts}
	if col.Options.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if col.Options.Unique {
		parts = append(parts, "UNIQUE")
	}
	if col.Options.Default != nil {
		lit, err := defaultLiteral(col.Options.Default)
		if err != nil {
			return "", err
		}
		parts = append(parts, "DEFAULT "+lit)
	}
	return strings.Join(parts, " "), nil
}

// defaultLiteral renders a Go value as a SQL DEFAULT literal.
func defaultLiteral(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported default value type %T", v)
	}
}

func validTableName(op, table string) *dberr.Error {
	if table == "" {
		return dberr.New(dberr.Schema, op, "table name is required")
	}
	if !dialect.ValidIdent(table) {
		return dberr.Newf(dberr.Schema, op, "invalid table name %q", table)
	}
	return nil
}
