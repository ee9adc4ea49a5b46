package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL flavour behind a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB wraps sql.DB with the dialect its queries must be written in.
type DB struct {
	Client  *sql.DB
	Dialect Dialect
}

// Open connects to the configured backend, "postgres" or "sqlite".
func Open(backend, databaseURL, sqlitePath string) (*DB, error) {
	switch Dialect(backend) {
	case Postgres:
		return NewDB(databaseURL)
	case SQLite:
		return NewSQLite(sqlitePath)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db, Dialect: Postgres}, db.PingContext(context.Background())
}

// NewSQLite opens a local SQLite database, creating its directory. The pool is
// pinned to one connection so ":memory:" databases survive across queries.
func NewSQLite(path string) (*DB, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &DB{Client: db, Dialect: SQLite}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Healthy pings the database.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

var dollarParam = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites $N placeholders for dialects that spell them differently.
func (d *DB) Rebind(query string) string {
	if d.Dialect == SQLite {
		return dollarParam.ReplaceAllString(query, "?$1")
	}
	return query
}

var schemas = map[Dialect]string{
	Postgres: `
	CREATE TABLE IF NOT EXISTS user_details (
		id          UUID PRIMARY KEY,
		name        TEXT,
		email       TEXT NOT NULL,
		institution TEXT
	);

	CREATE TABLE IF NOT EXISTS presences (
		id             UUID PRIMARY KEY,
		user_id        UUID NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		presence_type  TEXT,
		presence_label TEXT,
		latitude       DOUBLE PRECISION NOT NULL,
		longitude      DOUBLE PRECISION NOT NULL,
		distance       DOUBLE PRECISION
	);

	CREATE INDEX IF NOT EXISTS idx_presences_user ON presences(user_id);
	CREATE INDEX IF NOT EXISTS idx_presences_time ON presences(created_at);
	`,
	SQLite: `
	CREATE TABLE IF NOT EXISTS user_details (
		id          TEXT PRIMARY KEY,
		name        TEXT,
		email       TEXT NOT NULL,
		institution TEXT
	);

	CREATE TABLE IF NOT EXISTS presences (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		created_at     DATETIME NOT NULL,
		presence_type  TEXT,
		presence_label TEXT,
		latitude       REAL NOT NULL,
		longitude      REAL NOT NULL,
		distance       REAL
	);

	CREATE INDEX IF NOT EXISTS idx_presences_user ON presences(user_id);
	CREATE INDEX IF NOT EXISTS idx_presences_time ON presences(created_at);
	`,
}

// Migrate creates the presences and user_details tables when missing.
func (d *DB) Migrate(ctx context.Context) error {
	schema, ok := schemas[d.Dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", d.Dialect)
	}
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
