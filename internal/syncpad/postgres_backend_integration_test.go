package syncpad

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var postgresIntegrationCounter uint64

func TestPostgresIntegrationDocumentRoundTrip(t *testing.T) {
	dsn := postgresIntegrationDSN(t)

	backend, err := NewPostgresDatabase(dsn)
	if err != nil {
		t.Fatalf("new postgres database: %v", err)
	}
	pg, ok := backend.(*PostgresDatabase)
	if !ok {
		t.Fatalf("expected *PostgresDatabase, got %T", backend)
	}
	pg.tableName = postgresIntegrationTableName("syncpad_documents_it")
	t.Cleanup(func() {
		_ = backend.Close()
		postgresIntegrationDropTable(t, dsn, pg.tableName)
	})

	ctx := context.Background()
	if _, err := backend.Load(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found before store, got %v", err)
	}

	want := PersistedDocument{Text: "fn main() {}", Language: "rust"}
	if err := backend.Store(ctx, "doc-1", want); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	got, err := backend.Load(ctx, "doc-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}

	want.Text = "fn main() { println!(); }"
	want.Language = ""
	if err := backend.Store(ctx, "doc-1", want); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	got, err = backend.Load(ctx, "doc-1")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got != want {
		t.Fatalf("upsert mismatch: got %+v want %+v", got, want)
	}
}

func TestPostgresOpenFailureIsSticky(t *testing.T) {
	backend, err := NewPostgresDatabase("postgres://localhost/syncpad")
	if err != nil {
		t.Fatalf("new postgres database: %v", err)
	}
	pg := backend.(*PostgresDatabase)
	var opens atomic.Int64
	pg.openDB = func(driverName, dsn string) (*sql.DB, error) {
		opens.Add(1)
		return nil, errors.New("driver unavailable")
	}

	if _, err := backend.Load(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected load to fail")
	}
	if err := backend.Store(context.Background(), "doc-1", PersistedDocument{}); err == nil {
		t.Fatalf("expected store to fail")
	}
	if got := opens.Load(); got != 1 {
		t.Fatalf("expected a single open attempt, got %d", got)
	}
}

func TestPostgresQuoteIdentifier(t *testing.T) {
	if got := postgresQuoteIdentifier("syncpad_documents"); got != `"syncpad_documents"` {
		t.Fatalf("unexpected quoting: %s", got)
	}
	if got := postgresQuoteIdentifier(`evil"name`); got != `"evil""name"` {
		t.Fatalf("embedded quote not escaped: %s", got)
	}
}

func postgresIntegrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("SYNCPAD_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set SYNCPAD_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	return dsn
}

func postgresIntegrationTableName(prefix string) string {
	n := atomic.AddUint64(&postgresIntegrationCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano(), n)
}

func postgresIntegrationDropTable(t *testing.T, dsn, tableName string) {
	t.Helper()
	if strings.TrimSpace(dsn) == "" || strings.TrimSpace(tableName) == "" {
		return
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open postgres for cleanup failed: %v", err)
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", postgresQuoteIdentifier(tableName))
	if _, err := db.ExecContext(ctx, query); err != nil {
		t.Fatalf("drop cleanup table %q failed: %v", tableName, err)
	}
}
