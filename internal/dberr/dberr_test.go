package dberr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(Schema, "dbmanager.CreateTable", "bad column")
	if got := KindOf(err); got != Schema {
		t.Fatalf("expected schema kind, got %s", got)
	}
	if KindOf(errors.New("plain")) != Unknown {
		t.Fatalf("expected unknown kind for plain error")
	}
	if KindOf(nil) != Unknown {
		t.Fatalf("expected unknown kind for nil error")
	}
}

func TestKindOfWrappedChain(t *testing.T) {
	inner := New(Authorization, "dbmanager.DropTable", "deletion password mismatch")
	outer := fmt.Errorf("request failed: %w", inner)
	if !IsKind(outer, Authorization) {
		t.Fatalf("expected authorization kind through wrapping, got %s", KindOf(outer))
	}
}

func TestCausePreserved(t *testing.T) {
	cause := errors.New("driver: connection refused")
	err := Wrap(cause, Connection, "dbmanager.Open", "database unreachable")
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
	want := "dbmanager.Open: database unreachable: driver: connection refused"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestKindStrings(t *testing.T) {
	cases := map[Kind]string{
		Connection:    "connection",
		Schema:        "schema",
		Data:          "data",
		Authorization: "authorization",
		Usage:         "usage",
		Internal:      "internal",
		Unknown:       "unknown",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Fatalf("expected %q, got %q", want, kind.String())
		}
	}
}
