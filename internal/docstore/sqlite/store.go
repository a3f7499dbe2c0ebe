// Package sqlite provides a SQLite-backed implementation of docstore.Store.
//
// Each document is one row keyed by (collection, doc_key). A conditional
// write is a single UPDATE guarded by the version the caller read, so the
// compare and the swap happen inside one statement and SQLite's write lock
// serialises competing writers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jcmexdev/order-desk/internal/docstore"

	// Pure-Go driver, no CGO needed for the container build.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    -- Logical container, e.g. "data".
    collection  TEXT NOT NULL,

    -- Document name inside the container: "users", "products", "orders".
    doc_key     TEXT NOT NULL,

    -- JSON payload, replaced wholesale on every write.
    body        BLOB NOT NULL,

    -- Opaque tag issued on every successful write.
    version     TEXT NOT NULL,

    -- RFC3339 TEXT, SQLite has no native datetime type.
    updated_at  TEXT NOT NULL,

    PRIMARY KEY (collection, doc_key)
);
`

// Store is the SQLite implementation of docstore.Store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
//
//	store, err := sqlite.Open("./data/order-desk.db")
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir for %q: %w", path, err)
		}
	}

	// busy_timeout makes a second writer wait for the lock instead of
	// failing with SQLITE_BUSY.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// One writer connection; readers never see a half-written row anyway.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Get(ctx context.Context, collection, key string) (docstore.Document, error) {
	const q = `
		SELECT body, version, updated_at
		FROM   documents
		WHERE  collection = ? AND doc_key = ?`

	var (
		doc       docstore.Document
		version   string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, q, collection, key).Scan(&doc.Data, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, nil
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("sqlite: get %s/%s: %w", collection, key, err)
	}

	doc.Version = docstore.Version(version)
	doc.UpdatedAt, err = parseRFC3339(updatedAt)
	if err != nil {
		return docstore.Document{}, err
	}
	return doc, nil
}

func (s *Store) Put(ctx context.Context, collection, key string, data []byte, expected docstore.Version) (docstore.Version, error) {
	next := docstore.NewVersion()
	updatedAt := formatRFC3339(s.now())

	if expected == docstore.NoVersion {
		const q = `
			INSERT INTO documents (collection, doc_key, body, version, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (collection, doc_key) DO UPDATE SET
				body       = excluded.body,
				version    = excluded.version,
				updated_at = excluded.updated_at`

		if _, err := s.db.ExecContext(ctx, q, collection, key, data, string(next), updatedAt); err != nil {
			return docstore.NoVersion, fmt.Errorf("sqlite: put %s/%s: %w", collection, key, err)
		}
		return next, nil
	}

	const q = `
		UPDATE documents
		SET    body = ?, version = ?, updated_at = ?
		WHERE  collection = ? AND doc_key = ? AND version = ?`

	res, err := s.db.ExecContext(ctx, q, data, string(next), updatedAt, collection, key, string(expected))
	if err != nil {
		return docstore.NoVersion, fmt.Errorf("sqlite: put %s/%s: %w", collection, key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return docstore.NoVersion, fmt.Errorf("sqlite: put %s/%s: rows affected: %w", collection, key, err)
	}
	if n == 0 {
		return docstore.NoVersion, docstore.ErrVersionConflict
	}
	return next, nil
}

func (s *Store) Create(ctx context.Context, collection, key string, data []byte) (docstore.Version, error) {
	const q = `
		INSERT INTO documents (collection, doc_key, body, version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, doc_key) DO NOTHING`

	next := docstore.NewVersion()
	res, err := s.db.ExecContext(ctx, q, collection, key, data, string(next), formatRFC3339(s.now()))
	if err != nil {
		return docstore.NoVersion, fmt.Errorf("sqlite: create %s/%s: %w", collection, key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return docstore.NoVersion, fmt.Errorf("sqlite: create %s/%s: rows affected: %w", collection, key, err)
	}
	if n == 0 {
		return docstore.NoVersion, docstore.ErrVersionConflict
	}
	return next, nil
}

// applySchema runs the DDL once. Idempotent due to IF NOT EXISTS.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}
