package dbmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tablekit/tablekit/internal/dberr"
	"github.com/tablekit/tablekit/internal/dialect"
)

// Update sets the given columns on every row matching the filter. An
// empty set or an empty filter fails with a data error; unrestricted
// updates must go through Upsert or DeleteAll-style explicit operations.
func (m *Manager) Update(ctx context.Context, table string, set Record, where Filter) error {
	const op = "dbmanager.Update"

	db, err := m.conn(op)
	if err != nil {
		return err
	}
	if err := validTableName(op, table); err != nil {
		return m.fail(err)
	}
	if len(set) == 0 {
		return m.fail(dberr.New(dberr.Data, op, "no columns to update"))
	}
	if where.Empty() {
		return m.fail(dberr.New(dberr.Data, op, "refusing update without a filter"))
	}

	cols := sortedKeys(set)
	assigns := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		if !dialect.ValidIdent(c) {
			return m.fail(dberr.Newf(dberr.Data, op, "invalid column name %q in update", c))
		}
		assigns = append(assigns, m.d.QuoteIdent(c)+" = ?")
		args = append(args, set[c])
	}

	clause, whereArgs, derr := m.whereSQL(op, where)
	if derr != nil {
		return m.fail(derr)
	}
	args = append(args, whereArgs...)

	stmt := sqlx.Rebind(m.d.BindType(), fmt.Sprintf("UPDATE %s SET %s%s",
		m.d.QuoteIdent(table), strings.Join(assigns, ", "), clause))
	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return m.fail(dberr.Wrap(err, dberr.Data, op, fmt.Sprintf("failed to update table %q", table)))
	}

	affected, _ := res.RowsAffected()
	m.log.Info().Str("table", table).Int64("rows", affected).Msg("Rows updated")
	return nil
}

// Delete removes the rows matching the filter. An empty or omitted
// filter fails with a data error before anything reaches the database,
// so a forgotten filter can never empty a table.
func (m *Manager) Delete(ctx context.Context, table string, where Filter) error {
	const op = "dbmanager.Delete"

	db, err := m.conn(op)
	if err != nil {
		return err
	}
	if err := validTableName(op, table); err != nil {
		return m.fail(err)
	}
	if where.Empty() {
		return m.fail(dberr.New(dberr.Data, op, "refusing delete without a filter"))
	}

	clause, args, derr := m.whereSQL(op, where)
	if derr != nil {
		return m.fail(derr)
	}

	stmt := sqlx.Rebind(m.d.BindType(), "DELETE FROM "+m.d.QuoteIdent(table)+clause)
	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return m.fail(dberr.Wrap(err, dberr.Data, op, fmt.Sprintf("failed to delete from table %q", table)))
	}

	affected, _ := res.RowsAffected()
	m.log.Info().Str("table", table).Int64("rows", affected).Msg("Rows deleted")
	return nil
}

// DeleteAll removes every row of the table after checking the deletion
// password.
func (m *Manager) DeleteAll(ctx context.Context, table, password string) error {
	const op = "dbmanager.DeleteAll"

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

	res, err := db.ExecContext(ctx, "DELETE FROM "+m.d.QuoteIdent(table))
	if err != nil {
		return m.fail(dberr.Wrap(err, dberr.Data, op, fmt.Sprintf("failed to clear table %q", table)))
	}

	affected, _ := res.RowsAffected()
	m.log.Info().Str("table", table).Int64("rows", affected).Msg("All rows deleted")
	return nil
}
