package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tablekit/tablekit/internal/dbmanager"
)

func newTestService(t *testing.T) *APIKeyService {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	mgr, err := dbmanager.Open(context.Background(), dbmanager.Config{
		URL:      "sqlite://" + dbPath,
		LogLevel: "error",
	})
	if err != nil {
		t.Fatalf("failed to open manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	svc, err := NewAPIKeyService(context.Background(), mgr)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestGenerateAndVerify(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	active, err := svc.Active(ctx)
	if err != nil {
		t.Fatalf("Active returned error: %v", err)
	}
	if active {
		t.Fatal("expected no active keys before generation")
	}

	key, err := svc.GenerateKey(ctx, "ci")
	if err != nil {
		t.Fatalf("GenerateKey returned error: %v", err)
	}
	if len(key) != APIKeyLength*2 {
		t.Fatalf("expected %d hex chars, got %d", APIKeyLength*2, len(key))
	}

	ok, err := svc.Verify(ctx, key)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected generated key to verify")
	}

	ok, err = svc.Verify(ctx, "not-a-key")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatal("expected bogus key to be rejected")
	}

	ok, err = svc.Verify(ctx, "")
	if err != nil || ok {
		t.Fatalf("expected empty key to be rejected, ok=%v err=%v", ok, err)
	}

	active, err = svc.Active(ctx)
	if err != nil {
		t.Fatalf("Active returned error: %v", err)
	}
	if !active {
		t.Fatal("expected active keys after generation")
	}
}

func TestRegenerateReplacesKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.GenerateKey(ctx, "ci")
	if err != nil {
		t.Fatalf("GenerateKey returned error: %v", err)
	}
	second, err := svc.GenerateKey(ctx, "ci")
	if err != nil {
		t.Fatalf("GenerateKey returned error: %v", err)
	}

	ok, err := svc.Verify(ctx, first)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatal("expected the first key to be replaced")
	}
	ok, err = svc.Verify(ctx, second)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected the second key to verify")
	}
}

func TestGenerateKeyRequiresName(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.GenerateKey(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty key name")
	}
}
