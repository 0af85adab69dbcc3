package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the handle to the bookkeeping database. Reads share a
// lock; transactions and handle swaps take it exclusively, so mutations are
// serialized within the process.
type SQLiteRepository struct {
	mu      sync.RWMutex
	path    string
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := open(context.Background(), dbPath)
	if err != nil {
		return nil, err
	}

	repo := &SQLiteRepository{
		path:    dbPath,
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func open(ctx context.Context, dbPath string) (*sql.DB, error) {
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open sqlite database", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storageErr("ping database", err)
	}

	if err := ensureSchema(ctx, db, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return db, nil
}

// Path is the database file location.
func (r *SQLiteRepository) Path() string {
	return r.path
}

func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.queries = nil
	return err
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.db == nil {
		return storageErr("ping", sql.ErrConnDone)
	}
	return r.db.PingContext(ctx)
}

// Read runs fn against the live handle under the shared lock. fn may issue
// queries concurrently.
func (r *SQLiteRepository) Read(ctx context.Context, fn func(q *Queries) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.db == nil {
		return storageErr("read", sql.ErrConnDone)
	}
	return fn(r.queries)
}

// Tx runs fn inside a single transaction; any error rolls everything back.
func (r *SQLiteRepository) Tx(ctx context.Context, fn func(q *Queries) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return storageErr("begin transaction", sql.ErrConnDone)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

// EnsureSchema re-runs the idempotent schema steps on the live handle.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return storageErr("ensure schema", sql.ErrConnDone)
	}
	return ensureSchema(ctx, r.db, r.path)
}

// MigrateAddTenantColumn adds the tenant column to a legacy table. It reports
// whether anything changed.
func (r *SQLiteRepository) MigrateAddTenantColumn(ctx context.Context, table string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return false, storageErr("migrate tenant column", sql.ErrConnDone)
	}
	return migrateAddTenantColumn(ctx, r.db, table)
}

// Snapshot writes a consistent copy of the database to dest, which must not exist.
func (r *SQLiteRepository) Snapshot(ctx context.Context, dest string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.db == nil {
		return storageErr("snapshot", sql.ErrConnDone)
	}
	if _, err := r.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return storageErr("snapshot database", err)
	}

	slog.InfoContext(ctx, "Database snapshot written", "path", dest)
	return nil
}

// Reload closes the handle and reopens the file at Path.
func (r *SQLiteRepository) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.reopenLocked(ctx)
}

func (r *SQLiteRepository) reopenLocked(ctx context.Context) error {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			slog.WarnContext(ctx, "Closing database before reload failed", "error", err)
		}
		r.db, r.queries = nil, nil
	}

	db, err := open(ctx, r.path)
	if err != nil {
		return err
	}
	r.db, r.queries = db, New(db)

	slog.InfoContext(ctx, "Database handle reloaded", "path", r.path)
	return nil
}

// Replace swaps the database file for src. The current file is kept at
// backupPath. The handle is reopened on the new file; when that fails the
// previous file is put back and reopened.
func (r *SQLiteRepository) Replace(ctx context.Context, src, backupPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			return storageErr("close database before restore", err)
		}
		r.db, r.queries = nil, nil
	}

	if err := os.Rename(r.path, backupPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		reopenErr := r.reopenLocked(ctx)
		return errors.Join(fmt.Errorf("keep previous database: %w", err), reopenErr)
	}

	if err := os.Rename(src, r.path); err != nil {
		restoreErr := os.Rename(backupPath, r.path)
		reopenErr := r.reopenLocked(ctx)
		return errors.Join(fmt.Errorf("swap in restored database: %w", err), restoreErr, reopenErr)
	}

	if err := r.reopenLocked(ctx); err != nil {
		slog.ErrorContext(ctx, "Restored database failed to open, rolling back", "error", err)
		rollbackErr := os.Rename(r.path, r.path+".rejected")
		if rollbackErr == nil {
			rollbackErr = os.Rename(backupPath, r.path)
		}
		reopenErr := r.reopenLocked(ctx)
		return errors.Join(fmt.Errorf("open restored database: %w", err), rollbackErr, reopenErr)
	}

	slog.InfoContext(ctx, "Database file replaced", "path", r.path, "previous", backupPath)
	return nil
}
