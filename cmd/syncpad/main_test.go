package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentworkforce/syncpad/internal/syncpad"
)

func TestDurationEnvParsesValue(t *testing.T) {
	t.Setenv("SYNCPAD_TEST_DURATION", "150ms")
	got := durationEnv("SYNCPAD_TEST_DURATION", time.Second)
	if got != 150*time.Millisecond {
		t.Fatalf("expected 150ms, got %s", got)
	}
}

func TestDurationEnvFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("SYNCPAD_TEST_DURATION_BAD", "soon")
	got := durationEnv("SYNCPAD_TEST_DURATION_BAD", 2*time.Second)
	if got != 2*time.Second {
		t.Fatalf("expected fallback 2s, got %s", got)
	}
}

func TestInt64EnvParsesAndFallsBack(t *testing.T) {
	t.Setenv("SYNCPAD_TEST_INT64", "1048576")
	if got := int64Env("SYNCPAD_TEST_INT64", 7); got != 1048576 {
		t.Fatalf("expected 1048576, got %d", got)
	}
	t.Setenv("SYNCPAD_TEST_INT64_BAD", "big")
	if got := int64Env("SYNCPAD_TEST_INT64_BAD", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestEnvHelpersUseFallbackWhenUnset(t *testing.T) {
	_ = os.Unsetenv("SYNCPAD_TEST_INT64_UNSET")
	_ = os.Unsetenv("SYNCPAD_TEST_DURATION_UNSET")

	if got := int64Env("SYNCPAD_TEST_INT64_UNSET", 9); got != 9 {
		t.Fatalf("expected fallback 9, got %d", got)
	}
	if got := durationEnv("SYNCPAD_TEST_DURATION_UNSET", 3*time.Second); got != 3*time.Second {
		t.Fatalf("expected fallback 3s, got %s", got)
	}
}

func TestStorageProfileDefaults(t *testing.T) {
	t.Setenv("SYNCPAD_DATA_DIR", "")

	t.Setenv("SYNCPAD_BACKEND_PROFILE", "")
	if dsn, err := storageProfileDefaultsFromEnv(); err != nil || dsn != "" {
		t.Fatalf("expected no default DSN, got %q, %v", dsn, err)
	}

	t.Setenv("SYNCPAD_BACKEND_PROFILE", "memory")
	if dsn, err := storageProfileDefaultsFromEnv(); err != nil || dsn != "memory://" {
		t.Fatalf("expected memory DSN, got %q, %v", dsn, err)
	}

	t.Setenv("SYNCPAD_BACKEND_PROFILE", "durable-local")
	dsn, err := storageProfileDefaultsFromEnv()
	if err != nil {
		t.Fatalf("durable-local failed: %v", err)
	}
	if !strings.HasPrefix(dsn, "file://") || !strings.HasSuffix(dsn, filepath.Join(".syncpad", "documents.json")) {
		t.Fatalf("unexpected durable-local DSN %q", dsn)
	}

	t.Setenv("SYNCPAD_BACKEND_PROFILE", "production")
	t.Setenv("SYNCPAD_POSTGRES_DSN", "")
	if _, err := storageProfileDefaultsFromEnv(); err == nil {
		t.Fatalf("expected error when production profile has no DSN")
	}
	t.Setenv("SYNCPAD_POSTGRES_DSN", "postgres://localhost/syncpad")
	if dsn, err := storageProfileDefaultsFromEnv(); err != nil || dsn != "postgres://localhost/syncpad" {
		t.Fatalf("expected postgres DSN, got %q, %v", dsn, err)
	}

	t.Setenv("SYNCPAD_BACKEND_PROFILE", "floppy")
	if _, err := storageProfileDefaultsFromEnv(); err == nil {
		t.Fatalf("expected error for unsupported profile")
	}
}

func TestBuildDatabaseFromEnvPrefersExplicitDSN(t *testing.T) {
	t.Setenv("SYNCPAD_BACKEND_PROFILE", "durable-local")
	t.Setenv("SYNCPAD_DATABASE_DSN", "memory://")
	db, err := buildDatabaseFromEnv()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer db.Close()
	if _, ok := db.(*syncpad.InMemoryDatabase); !ok {
		t.Fatalf("expected the explicit DSN to win, got %T", db)
	}
}
