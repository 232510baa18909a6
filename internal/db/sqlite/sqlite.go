// Package sqlite opens the relational store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	msqlite "modernc.org/sqlite"

	"github.com/kailas-cloud/taskctx/internal/db"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// CaseFold is the SQL function folding text the way Fold does. SQLite's lower()
// only folds ASCII.
const CaseFold = "casefold"

func init() {
	err := msqlite.RegisterDeterministicScalarFunction(CaseFold, 1,
		func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return Fold(v), nil
			case []byte:
				return Fold(string(v)), nil
			default:
				return v, nil
			}
		})
	if err != nil {
		panic(fmt.Sprintf("register %s: %v", CaseFold, err))
	}
}

// Fold lowercases s with Unicode case mapping.
func Fold(s string) string { return strings.ToLower(s) }

// DB wraps a *sql.DB opened on SQLite and the gorm session sharing its pool.
type DB struct {
	conn *sql.DB
	orm  *gorm.DB
}

// Open opens (or creates) the SQLite database at path and applies pragmas.
func Open(ctx context.Context, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == MemoryPath {
		// every pooled connection would otherwise get its own empty database
		conn.SetMaxOpenConns(1)
	}

	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	orm, err := gorm.Open(gormsqlite.New(gormsqlite.Config{Conn: conn}), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open gorm on %s: %w", path, err)
	}

	return &DB{conn: conn, orm: orm}, nil
}

// Conn exposes the underlying pool for schema management and test seeding.
func (d *DB) Conn() *sql.DB { return d.conn }

// ORM exposes the gorm session repositories query through.
func (d *DB) ORM() *gorm.DB { return d.orm }

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (d *DB) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := d.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for sqlite: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close closes the pool.
func (d *DB) Close() error {
	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Migrate creates missing tables and indexes. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("statement %d: %w", i, err)}
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO schema_version (id, version) VALUES (1, ?)", SchemaVersion); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: err}
	}
	return nil
}

// Version returns the applied schema version, 0 when the database is empty.
func (d *DB) Version(ctx context.Context) (int, error) {
	var v int
	err := d.conn.QueryRowContext(ctx, "SELECT version FROM schema_version WHERE id = 1").Scan(&v)
	if err != nil {
		return 0, nil //nolint:nilerr // missing table or row means nothing was migrated yet
	}
	return v, nil
}
