package syncpad

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	postgresDocumentTableName = "syncpad_documents"
	postgresOperationTimeout  = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresDatabase stores one row per document id. The schema is
// created lazily on first use.
type PostgresDatabase struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresDatabase(dsn string) (Database, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	return &PostgresDatabase{
		dsn:       dsn,
		tableName: postgresDocumentTableName,
		openDB:    sql.Open,
	}, nil
}

func (d *PostgresDatabase) Load(ctx context.Context, id string) (PersistedDocument, error) {
	if err := d.ensureReady(); err != nil {
		return PersistedDocument{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT text, language FROM %s WHERE id = $1", postgresQuoteIdentifier(d.tableName))
	var text string
	var language sql.NullString
	err := d.db.QueryRowContext(ctx, query, id).Scan(&text, &language)
	if errors.Is(err, sql.ErrNoRows) {
		return PersistedDocument{}, ErrNotFound
	}
	if err != nil {
		return PersistedDocument{}, err
	}
	return PersistedDocument{Text: text, Language: language.String}, nil
}

func (d *PostgresDatabase) Store(ctx context.Context, id string, doc PersistedDocument) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	if err := d.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	var language sql.NullString
	if doc.Language != "" {
		language = sql.NullString{String: doc.Language, Valid: true}
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, text, language, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id)
		DO UPDATE SET text = EXCLUDED.text, language = EXCLUDED.language, updated_at = NOW()`,
		postgresQuoteIdentifier(d.tableName))
	_, err := d.db.ExecContext(ctx, query, id, doc.Text, language)
	return err
}

func (d *PostgresDatabase) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *PostgresDatabase) ensureReady() error {
	if d == nil {
		return ErrInvalidInput
	}
	d.initOnce.Do(func() {
		db, err := d.openDB("postgres", d.dsn)
		if err != nil {
			d.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				text TEXT NOT NULL,
				language TEXT,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, postgresQuoteIdentifier(d.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			d.initErr = err
			return
		}
		d.db = db
	})
	return d.initErr
}

func postgresQuoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
