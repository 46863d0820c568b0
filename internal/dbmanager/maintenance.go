package dbmanager

import (
	"context"

	"github.com/tablekit/tablekit/internal/dberr"
)

// Optimize refreshes the backend's planner statistics.
func (m *Manager) Optimize(ctx context.Context) error {
	const op = "dbmanager.Optimize"

	db, err := m.conn(op)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, m.d.OptimizeSQL()); err != nil {
		return m.fail(dberr.Wrap(err, dberr.Internal, op, "failed to optimize database"))
	}
	m.log.Debug().Msg("Database optimized")
	return nil
}

// Vacuum rebuilds storage to reclaim unused space.
func (m *Manager) Vacuum(ctx context.Context) error {
	const op = "dbmanager.Vacuum"

	db, err := m.conn(op)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return m.fail(dberr.Wrap(err, dberr.Internal, op, "failed to vacuum database"))
	}
	m.log.Debug().Msg("Database vacuumed")
	return nil
}
