// Package sqlstore implements a store backend on a SQL table, with sqlite
// and postgres dialects.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// Dialect captures the SQL differences between drivers.
type Dialect struct {
	Driver string
	create string
	insert string
	get    string
	exists string
}

var (
	// SQLite stores entries in a local database file.
	SQLite = Dialect{
		Driver: "sqlite",
		create: `CREATE TABLE IF NOT EXISTS blobs (
    digest  TEXT PRIMARY KEY,
    content BLOB,
    size    INTEGER NOT NULL
)`,
		insert: `INSERT INTO blobs (digest, content, size) VALUES (?, ?, ?) ON CONFLICT (digest) DO NOTHING`,
		get:    `SELECT content FROM blobs WHERE digest = ?`,
		exists: `SELECT 1 FROM blobs WHERE digest = ?`,
	}

	// Postgres stores entries in a shared database.
	Postgres = Dialect{
		Driver: "pgx",
		create: `CREATE TABLE IF NOT EXISTS blobs (
    digest  TEXT PRIMARY KEY,
    content BYTEA,
    size    BIGINT NOT NULL
)`,
		insert: `INSERT INTO blobs (digest, content, size) VALUES ($1, $2, $3) ON CONFLICT (digest) DO NOTHING`,
		get:    `SELECT content FROM blobs WHERE digest = $1`,
		exists: `SELECT 1 FROM blobs WHERE digest = $1`,
	}
)

// Backend implements ports.Backend. The primary key makes the insert the
// create-if-absent primitive: a losing writer affects zero rows and reads the
// winner's content back.
type Backend struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(ctx context.Context, path string) (*Backend, error) {
	db, err := sql.Open(SQLite.Driver, path)
	if err != nil {
		return nil, createError(err, "open database")
	}
	// One connection serializes writers; the pragmas below are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, createError(err, pragma)
		}
	}

	return newBackend(ctx, db, SQLite)
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Backend, error) {
	db, err := sql.Open(Postgres.Driver, dsn)
	if err != nil {
		return nil, createError(err, "open database")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, createError(err, "ping")
	}

	return newBackend(ctx, db, Postgres)
}

func newBackend(ctx context.Context, db *sql.DB, d Dialect) (*Backend, error) {
	if _, err := db.ExecContext(ctx, d.create); err != nil {
		_ = db.Close()
		return nil, createError(err, "create blobs table")
	}
	return &Backend{db: db, dialect: d}, nil
}

func createError(err error, step string) error {
	return zerr.With(zerr.Wrap(errors.Join(domain.ErrStoreCreateFailed, err), step), "driver", "sql")
}

// PutIfAbsent inserts blob unless d exists.
func (b *Backend) PutIfAbsent(ctx context.Context, d domain.Digest, blob []byte) ([]byte, bool, error) {
	res, err := b.db.ExecContext(ctx, b.dialect.insert, d.String(), blob, len(blob))
	if err != nil {
		return nil, false, zerr.Wrap(err, "insert blob")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, zerr.Wrap(err, "insert blob")
	}
	if n == 1 {
		return nil, true, nil
	}

	existing, ok, err := b.Get(ctx, d)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, zerr.With(zerr.Wrap(domain.ErrStoreIO, "conflicting row vanished"), "digest", d.String())
	}
	return existing, false, nil
}

// Get reads the content under d.
func (b *Backend) Get(ctx context.Context, d domain.Digest) ([]byte, bool, error) {
	var content []byte
	err := b.db.QueryRowContext(ctx, b.dialect.get, d.String()).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, zerr.Wrap(err, "select blob")
	}
	return content, true, nil
}

// Contains reports whether d has a row.
func (b *Backend) Contains(ctx context.Context, d domain.Digest) (bool, error) {
	var one int
	err := b.db.QueryRowContext(ctx, b.dialect.exists, d.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, zerr.Wrap(err, "select blob")
	}
	return true, nil
}

const listQuery = `SELECT digest, size FROM blobs`

// Entries lists every row.
func (b *Backend) Entries(ctx context.Context) ([]ports.Entry, error) {
	rows, err := b.db.QueryContext(ctx, listQuery)
	if err != nil {
		return nil, zerr.Wrap(err, "list blobs")
	}
	defer func() { _ = rows.Close() }()

	var out []ports.Entry
	for rows.Next() {
		var (
			hex  string
			size int64
		)
		if err := rows.Scan(&hex, &size); err != nil {
			return nil, zerr.Wrap(err, "scan blob row")
		}
		d, err := domain.ParseDigest(hex)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrStoreIO, "malformed digest in blobs table"), "digest", hex)
		}
		out = append(out, ports.Entry{Digest: d, Size: size})
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, "list blobs")
	}
	return out, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}
