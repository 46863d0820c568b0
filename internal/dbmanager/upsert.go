package dbmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tablekit/tablekit/internal/dberr"
	"github.com/tablekit/tablekit/internal/dialect"
)

// ConflictPolicy decides what happens when an inserted record collides
// with an existing row on the conflict column.
type ConflictPolicy int

const (
	// ConflictUpdate overwrites the existing row's non-conflict columns
	// with the new record's values.
	ConflictUpdate ConflictPolicy = iota
	// ConflictIgnore keeps the existing row and drops the new record.
	ConflictIgnore
)

// Upsert inserts one or more records into the table as a single
// statement. On a uniqueness conflict at conflictColumn the policy
// decides between updating the stored row and ignoring the new one. All
// records must share the key set of the first; the batch succeeds or
// fails atomically.
func (m *Manager) Upsert(ctx context.Context, table, conflictColumn string, policy ConflictPolicy, records ...Record) error {
	const op = "dbmanager.Upsert"

	db, err := m.conn(op)
	if err != nil {
		return err
	}
	if err := validTableName(op, table); err != nil {
		return m.fail(err)
	}
	if len(records) == 0 {
		m.log.Warn().Str("table", table).Msg("No records to upsert")
		return nil
	}
	if !dialect.ValidIdent(conflictColumn) {
		return m.fail(dberr.Newf(dberr.Data, op, "invalid conflict column %q", conflictColumn))
	}

	cols := sortedKeys(records[0])
	if len(cols) == 0 {
		return m.fail(dberr.New(dberr.Data, op, "record has no columns"))
	}
	if _, ok := records[0][conflictColumn]; !ok {
		return m.fail(dberr.Newf(dberr.Data, op, "records do not contain conflict column %q", conflictColumn))
	}
	for _, c := range cols {
		if !dialect.ValidIdent(c) {
			return m.fail(dberr.Newf(dberr.Data, op, "invalid column name %q in record", c))
		}
	}
	for i, rec := range records[1:] {
		if len(rec) != len(cols) {
			return m.fail(dberr.Newf(dberr.Data, op, "record %d does not match the columns of the first record", i+1))
		}
		for _, c := range cols {
			if _, ok := rec[c]; !ok {
				return m.fail(dberr.Newf(dberr.Data, op, "record %d is missing column %q", i+1, c))
			}
		}
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = m.d.QuoteIdent(c)
	}
	row := "(" + strings.Repeat("?, ", len(cols)-1) + "?)"
	rows := make([]string, len(records))
	args := make([]any, 0, len(records)*len(cols))
	for i, rec := range records {
		rows[i] = row
		for _, c := range cols {
			args = append(args, rec[c])
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES %s",
		m.d.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(rows, ", "))
	fmt.Fprintf(&sb, " ON CONFLICT (%s) ", m.d.QuoteIdent(conflictColumn))

	updates := make([]string, 0, len(cols)-1)
	if policy == ConflictUpdate {
		for _, c := range cols {
			if c == conflictColumn {
				continue
			}
			qc := m.d.QuoteIdent(c)
			updates = append(updates, qc+" = excluded."+qc)
		}
	}
	if len(updates) > 0 {
		sb.WriteString("DO UPDATE SET " + strings.Join(updates, ", "))
	} else {
		// ConflictIgnore, or an update with nothing beyond the conflict
		// column to set.
		sb.WriteString("DO NOTHING")
	}

	stmt := sqlx.Rebind(m.d.BindType(), sb.String())
	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		return m.fail(dberr.Wrap(err, dberr.Data, op, fmt.Sprintf("failed to upsert into table %q", table)))
	}

	m.log.Info().Str("table", table).Int("records", len(records)).Msg("Records upserted")
	return nil
}
