package config

import (
	"context"

	"github.com/tablekit/tablekit/internal/dbmanager"
)

// SettingsTable is the table the store keeps its key/value pairs in.
const SettingsTable = "tablekit_settings"

// Store persists settings through the database manager itself, in a
// key/value table created on first use.
type Store struct {
	mgr *dbmanager.Manager
}

// NewStore ensures the settings table exists and returns a store bound
// to the manager.
func NewStore(ctx context.Context, mgr *dbmanager.Manager) (*Store, error) {
	err := mgr.CreateTable(ctx, SettingsTable, []dbmanager.Column{
		{Name: "key", Type: dbmanager.Text, Options: dbmanager.ColumnOptions{PrimaryKey: true}},
		{Name: "value", Type: dbmanager.Text, Options: dbmanager.ColumnOptions{NotNull: true}},
	})
	if err != nil {
		return nil, err
	}
	return &Store{mgr: mgr}, nil
}

// GetSetting retrieves a setting value by key; missing keys return "".
func (s *Store) GetSetting(key string) (string, error) {
	rec, err := s.mgr.SelectOne(context.Background(), SettingsTable, dbmanager.Query{
		Where: dbmanager.Where(dbmanager.Cond{"key": key}),
	})
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", nil
	}
	val, _ := rec["value"].(string)
	return val, nil
}

// SetSetting stores a setting value, replacing any previous one.
func (s *Store) SetSetting(key, value string) error {
	return s.mgr.Upsert(context.Background(), SettingsTable, "key", dbmanager.ConflictUpdate,
		dbmanager.Record{"key": key, "value": value})
}
