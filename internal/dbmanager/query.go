package dbmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tablekit/tablekit/internal/dberr"
	"github.com/tablekit/tablekit/internal/dialect"
)

// Query carries the optional parts of a Select.
type Query struct {
	// Where filters the rows; a nil or empty filter matches everything.
	Where Filter
	// Columns projects the result to the named columns; empty selects
	// all columns.
	Columns []string
}

// Select returns the rows of the table matching the query, each as a
// column-to-value record.
func (m *Manager) Select(ctx context.Context, table string, q Query) ([]Record, error) {
	const op = "dbmanager.Select"

	db, err := m.conn(op)
	if err != nil {
		return nil, err
	}
	stmt, args, derr := m.selectSQL(op, table, q, false)
	if derr != nil {
		return nil, m.fail(derr)
	}

	rows, err := db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, m.fail(dberr.Wrap(err, dberr.Data, op, fmt.Sprintf("failed to select from table %q", table)))
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{}
		if err := rows.MapScan(rec); err != nil {
			return nil, m.fail(dberr.Wrap(err, dberr.Data, op, "failed to scan row"))
		}
		out = append(out, normalizeRecord(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, m.fail(dberr.Wrap(err, dberr.Data, op, "row iteration failed"))
	}

	m.log.Debug().Str("table", table).Int("rows", len(out)).Msg("Rows selected")
	return out, nil
}

// SelectOne returns the first row matching the query, or nil when
// nothing matches.
func (m *Manager) SelectOne(ctx context.Context, table string, q Query) (Record, error) {
	const op = "dbmanager.SelectOne"

	db, err := m.conn(op)
	if err != nil {
		return nil, err
	}
	stmt, args, derr := m.selectSQL(op, table, q, true)
	if derr != nil {
		return nil, m.fail(derr)
	}

	rows, err := db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, m.fail(dberr.Wrap(err, dberr.Data, op, fmt.Sprintf("failed to select from table %q", table)))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, m.fail(dberr.Wrap(err, dberr.Data, op, "row iteration failed"))
		}
		return nil, nil
	}
	rec := Record{}
	if err := rows.MapScan(rec); err != nil {
		return nil, m.fail(dberr.Wrap(err, dberr.Data, op, "failed to scan row"))
	}
	return normalizeRecord(rec), nil
}

func (m *Manager) selectSQL(op, table string, q Query, limitOne bool) (string, []any, *dberr.Error) {
	if err := validTableName(op, table); err != nil {
		return "", nil, err
	}

	projection := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			if !dialect.ValidIdent(c) {
				return "", nil, dberr.Newf(dberr.Data, op, "invalid column name %q in projection", c)
			}
			quoted[i] = m.d.QuoteIdent(c)
		}
		projection = strings.Join(quoted, ", ")
	}

	where, args, derr := m.whereSQL(op, q.Where)
	if derr != nil {
		return "", nil, derr
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s%s", projection, m.d.QuoteIdent(table), where)
	if limitOne {
		stmt += " LIMIT 1"
	}
	return sqlx.Rebind(m.d.BindType(), stmt), args, nil
}
