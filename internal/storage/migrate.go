package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"ternak/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// TenantColumn scopes every ledger row to an asset.
const TenantColumn = "asset_id"

// LedgerTables are the tables partitioned by TenantColumn.
var LedgerTables = []string{"kebutuhan", "pengeluaran", "ayam", "pemasukan"}

func isLedgerTable(table string) bool {
	for _, t := range LedgerTables {
		if t == table {
			return true
		}
	}
	return false
}

func RunMigrations(dbPath string) error {
	// Create a separate connection for migrations to avoid interfering with the main connection
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// ensureSchema brings any database file, including one written by the
// single-tenant revision of the app, up to the current layout.
func ensureSchema(ctx context.Context, db *sql.DB, dbPath string) error {
	if err := RunMigrations(dbPath); err != nil {
		return err
	}

	for _, table := range LedgerTables {
		added, err := migrateAddTenantColumn(ctx, db, table)
		if err != nil {
			return err
		}
		if added {
			slog.InfoContext(ctx, "Added tenant column to legacy table", "table", table, "column", TenantColumn)
		}

		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", table, TenantColumn, table, TenantColumn)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return storageErr("create tenant index on "+table, err)
		}
	}

	return ensureDefaultAsset(ctx, db)
}

// migrateAddTenantColumn adds asset_id to table when missing. It reports
// whether the column was added and is a no-op on migrated tables.
func migrateAddTenantColumn(ctx context.Context, db DBTX, table string) (bool, error) {
	if !isLedgerTable(table) {
		return false, fmt.Errorf("migrate tenant column: unknown table %q", table)
	}

	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, TenantColumn).Scan(&n)
	if err != nil {
		return false, storageErr("inspect "+table, err)
	}
	if n > 0 {
		return false, nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s INTEGER NOT NULL DEFAULT %d",
		table, TenantColumn, core.DefaultAssetID)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return false, storageErr("add tenant column to "+table, err)
	}
	return true, nil
}

func ensureDefaultAsset(ctx context.Context, db DBTX) error {
	_, err := db.ExecContext(ctx, "INSERT OR IGNORE INTO assets (id, name) VALUES (?, ?)",
		core.DefaultAssetID, core.DefaultAssetName(core.DefaultAssetID))
	if err != nil {
		return storageErr("ensure default asset", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStorageFailure, err)
}
