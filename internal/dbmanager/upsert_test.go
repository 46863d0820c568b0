package dbmanager

import (
	"context"
	"testing"

	"github.com/tablekit/tablekit/internal/dberr"
)

func TestUpsertUpdateOnConflict(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, "users", usersColumns()); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if err := m.Upsert(ctx, "users", "user_id", ConflictUpdate, Record{"user_id": 1, "first_name": "A"}); err != nil {
		t.Fatalf("first upsert returned error: %v", err)
	}
	if err := m.Upsert(ctx, "users", "user_id", ConflictUpdate, Record{"user_id": 1, "first_name": "B"}); err != nil {
		t.Fatalf("second upsert returned error: %v", err)
	}

	row, err := m.SelectOne(ctx, "users", Query{Where: Where(Cond{"user_id": 1})})
	if err != nil {
		t.Fatalf("SelectOne returned error: %v", err)
	}
	if row == nil {
		t.Fatal("expected a row")
	}
	if row["first_name"] != "B" {
		t.Fatalf("expected first_name to be updated to B, got %v", row["first_name"])
	}

	rows, err := m.Select(ctx, "users", Query{})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected a single row after conflict update, got %d", len(rows))
	}
}

func TestUpsertIgnoreOnConflict(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, "users", usersColumns()); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if err := m.Upsert(ctx, "users", "user_id", ConflictIgnore, Record{"user_id": 1, "first_name": "A"}); err != nil {
		t.Fatalf("first upsert returned error: %v", err)
	}
	if err := m.Upsert(ctx, "users", "user_id", ConflictIgnore, Record{"user_id": 1, "first_name": "B"}); err != nil {
		t.Fatalf("second upsert returned error: %v", err)
	}

	row, err := m.SelectOne(ctx, "users", Query{Where: Where(Cond{"user_id": 1})})
	if err != nil {
		t.Fatalf("SelectOne returned error: %v", err)
	}
	if row["first_name"] != "A" {
		t.Fatalf("expected first row to be kept, got %v", row["first_name"])
	}
}

func TestUpsertBatch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, "users", usersColumns()); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	err := m.Upsert(ctx, "users", "user_id", ConflictUpdate,
		Record{"user_id": 1, "first_name": "A"},
		Record{"user_id": 2, "first_name": "B"},
		Record{"user_id": 3, "first_name": "C"},
	)
	if err != nil {
		t.Fatalf("batch upsert returned error: %v", err)
	}

	rows, err := m.Select(ctx, "users", Query{})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
}

func TestUpsertNoRecordsIsNoOp(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, "users", usersColumns()); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if err := m.Upsert(ctx, "users", "user_id", ConflictUpdate); err != nil {
		t.Fatalf("expected empty upsert to be a no-op, got %v", err)
	}
}

func TestUpsertMalformedRecords(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.CreateTable(ctx, "users", usersColumns()); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	err := m.Upsert(ctx, "users", "user_id", ConflictUpdate, Record{"first_name": "A"})
	if !dberr.IsKind(err, dberr.Data) {
		t.Fatalf("expected data error for missing conflict column, got %v", err)
	}

	err = m.Upsert(ctx, "users", "user_id", ConflictUpdate,
		Record{"user_id": 1, "first_name": "A"},
		Record{"user_id": 2},
	)
	if !dberr.IsKind(err, dberr.Data) {
		t.Fatalf("expected data error for heterogeneous records, got %v", err)
	}

	err = m.Upsert(ctx, "users", "user_id", ConflictUpdate, Record{})
	if !dberr.IsKind(err, dberr.Data) {
		t.Fatalf("expected data error for empty record, got %v", err)
	}
}

func TestUpsertConstraintViolation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	err := m.CreateTable(ctx, "users", []Column{
		{Name: "user_id", Type: Integer, Options: ColumnOptions{PrimaryKey: true}},
		{Name: "first_name", Type: Text, Options: ColumnOptions{NotNull: true}},
	})
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	err = m.Upsert(ctx, "users", "user_id", ConflictUpdate, Record{"user_id": 1, "first_name": nil})
	if !dberr.IsKind(err, dberr.Data) {
		t.Fatalf("expected data error for null in non-null column, got %v", err)
	}
}

func TestUpsertBatchAtomicity(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	err := m.CreateTable(ctx, "users", []Column{
		{Name: "user_id", Type: Integer, Options: ColumnOptions{PrimaryKey: true}},
		{Name: "first_name", Type: Text, Options: ColumnOptions{NotNull: true}},
	})
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	// One bad record fails the whole statement.
	err = m.Upsert(ctx, "users", "user_id", ConflictUpdate,
		Record{"user_id": 1, "first_name": "A"},
		Record{"user_id": 2, "first_name": nil},
	)
	if !dberr.IsKind(err, dberr.Data) {
		t.Fatalf("expected data error, got %v", err)
	}

	rows, err := m.Select(ctx, "users", Query{})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows after failed batch, got %d", len(rows))
	}
}
