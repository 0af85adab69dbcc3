package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ternak/internal/core"
)

type scanner interface {
	Scan(dest ...any) error
}

// parseStoredDate tolerates the ISO timestamps older revisions occasionally wrote.
func parseStoredDate(s string) core.Date {
	s = strings.TrimSpace(s)
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
}

func affectedOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("rows affected", err)
	}
	if n == 0 {
		return notFound(what, id)
	}
	return nil
}

func order(newestFirst bool) string {
	if newestFirst {
		return "DESC"
	}
	return "ASC"
}

// --- assets ---

func (q *Queries) ListAssets(ctx context.Context) ([]core.Asset, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, name FROM assets ORDER BY id")
	if err != nil {
		return nil, storageErr("list assets", err)
	}
	defer rows.Close()

	var out []core.Asset
	for rows.Next() {
		var a core.Asset
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, storageErr("scan asset", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list assets", err)
	}
	return out, nil
}

func (q *Queries) GetAsset(ctx context.Context, id int64) (core.Asset, error) {
	var a core.Asset
	err := q.db.QueryRowContext(ctx, "SELECT id, name FROM assets WHERE id = ?", id).Scan(&a.ID, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return a, notFound("asset", id)
	}
	if err != nil {
		return a, storageErr("get asset", err)
	}
	return a, nil
}

func (q *Queries) CreateAsset(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, "INSERT INTO assets (name) VALUES (?)", name)
	if err != nil {
		return 0, storageErr("create asset", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("create asset", err)
	}
	return id, nil
}

// CreateAssetWithID inserts an asset under a caller-chosen id.
func (q *Queries) CreateAssetWithID(ctx context.Context, id int64, name string) error {
	if _, err := q.db.ExecContext(ctx, "INSERT INTO assets (id, name) VALUES (?, ?)", id, name); err != nil {
		return storageErr("create asset with id", err)
	}
	return nil
}

func (q *Queries) RenameAsset(ctx context.Context, id int64, name string) error {
	res, err := q.db.ExecContext(ctx, "UPDATE assets SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return storageErr("rename asset", err)
	}
	return affectedOne(res, "asset", id)
}

func (q *Queries) DeleteAsset(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return storageErr("delete asset", err)
	}
	return affectedOne(res, "asset", id)
}

func (q *Queries) EnsureDefaultAsset(ctx context.Context) error {
	return ensureDefaultAsset(ctx, q.db)
}

// --- kebutuhan (feed catalog) ---

const feedColumns = "id, nama, harga, asset_id"

func scanFeedItem(s scanner) (core.FeedItem, error) {
	var f core.FeedItem
	err := s.Scan(&f.ID, &f.Name, &f.UnitPrice, &f.AssetID)
	return f, err
}

func (q *Queries) CreateFeedItem(ctx context.Context, f core.FeedItem) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO kebutuhan (nama, harga, asset_id) VALUES (?, ?, ?)",
		f.Name, f.UnitPrice, f.AssetID)
	if err != nil {
		return 0, storageErr("create feed item", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetFeedItem(ctx context.Context, assetID, id int64) (core.FeedItem, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+feedColumns+" FROM kebutuhan WHERE id = ? AND asset_id = ?", id, assetID)
	f, err := scanFeedItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return f, notFound("feed item", id)
	}
	if err != nil {
		return f, storageErr("get feed item", err)
	}
	return f, nil
}

// FindFeedItemByName resolves duplicate names to the oldest row.
func (q *Queries) FindFeedItemByName(ctx context.Context, assetID int64, name string) (core.FeedItem, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+feedColumns+" FROM kebutuhan WHERE nama = ? AND asset_id = ? ORDER BY id ASC LIMIT 1",
		name, assetID)
	f, err := scanFeedItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return f, fmt.Errorf("feed item %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return f, storageErr("find feed item", err)
	}
	return f, nil
}

func (q *Queries) ListFeedItems(ctx context.Context, assetID int64) ([]core.FeedItem, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+feedColumns+" FROM kebutuhan WHERE asset_id = ? ORDER BY id ASC", assetID)
	if err != nil {
		return nil, storageErr("list feed items", err)
	}
	defer rows.Close()

	var out []core.FeedItem
	for rows.Next() {
		f, err := scanFeedItem(rows)
		if err != nil {
			return nil, storageErr("scan feed item", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list feed items", err)
	}
	return out, nil
}

func (q *Queries) UpdateFeedItem(ctx context.Context, f core.FeedItem) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE kebutuhan SET nama = ?, harga = ? WHERE id = ? AND asset_id = ?",
		f.Name, f.UnitPrice, f.ID, f.AssetID)
	if err != nil {
		return storageErr("update feed item", err)
	}
	return affectedOne(res, "feed item", f.ID)
}

func (q *Queries) DeleteFeedItem(ctx context.Context, assetID, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM kebutuhan WHERE id = ? AND asset_id = ?", id, assetID)
	if err != nil {
		return storageErr("delete feed item", err)
	}
	return affectedOne(res, "feed item", id)
}

// --- pengeluaran (expenses) ---

const expenseColumns = "id, nama, jumlah, harga, tanggal, asset_id"

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e    core.Expense
		date string
	)
	err := s.Scan(&e.ID, &e.Name, &e.Quantity, &e.Amount, &date, &e.AssetID)
	e.Date = parseStoredDate(date)
	return e, err
}

func (q *Queries) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list expenses", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, storageErr("scan expense", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list expenses", err)
	}
	return out, nil
}

func (q *Queries) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO pengeluaran (nama, jumlah, harga, tanggal, asset_id) VALUES (?, ?, ?, ?, ?)",
		e.Name, e.Quantity, e.Amount, e.Date.String(), e.AssetID)
	if err != nil {
		return 0, storageErr("create expense", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetExpense(ctx context.Context, assetID, id int64) (core.Expense, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM pengeluaran WHERE id = ? AND asset_id = ?", id, assetID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, notFound("expense", id)
	}
	if err != nil {
		return e, storageErr("get expense", err)
	}
	return e, nil
}

// ListExpensesPage returns the most recent expenses first.
func (q *Queries) ListExpensesPage(ctx context.Context, assetID int64, limit, offset int) ([]core.Expense, error) {
	return q.queryExpenses(ctx,
		"SELECT "+expenseColumns+" FROM pengeluaran WHERE asset_id = ? ORDER BY id DESC LIMIT ? OFFSET ?",
		assetID, limit, offset)
}

func (q *Queries) ListExpenses(ctx context.Context, assetID int64, newestFirst bool) ([]core.Expense, error) {
	return q.queryExpenses(ctx,
		"SELECT "+expenseColumns+" FROM pengeluaran WHERE asset_id = ? ORDER BY id "+order(newestFirst),
		assetID)
}

func (q *Queries) CountExpenses(ctx context.Context, assetID int64) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pengeluaran WHERE asset_id = ?", assetID).Scan(&n); err != nil {
		return 0, storageErr("count expenses", err)
	}
	return n, nil
}

func (q *Queries) SumExpenses(ctx context.Context, assetID int64) (int64, error) {
	return q.sum(ctx, "sum expenses",
		"SELECT COALESCE(SUM(harga), 0) FROM pengeluaran WHERE asset_id = ?", assetID)
}

// SumExpensesSince totals expenses dated on or after since.
func (q *Queries) SumExpensesSince(ctx context.Context, assetID int64, since core.Date) (int64, error) {
	return q.sum(ctx, "sum expenses since",
		"SELECT COALESCE(SUM(harga), 0) FROM pengeluaran WHERE asset_id = ? AND tanggal >= ?",
		assetID, since.String())
}

// SumExpensesInMonth totals expenses whose date falls in month (YYYY-MM).
func (q *Queries) SumExpensesInMonth(ctx context.Context, assetID int64, month string) (int64, error) {
	return q.sum(ctx, "sum expenses in month",
		"SELECT COALESCE(SUM(harga), 0) FROM pengeluaran WHERE asset_id = ? AND substr(tanggal, 1, 7) = ?",
		assetID, month)
}

func (q *Queries) ExpenseCategories(ctx context.Context, assetID int64) ([]core.CategoryAmount, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT nama, COALESCE(SUM(harga), 0) FROM pengeluaran WHERE asset_id = ? GROUP BY nama ORDER BY nama",
		assetID)
	if err != nil {
		return nil, storageErr("expense categories", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var c core.CategoryAmount
		if err := rows.Scan(&c.Name, &c.Amount); err != nil {
			return nil, storageErr("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("expense categories", err)
	}
	return out, nil
}

func (q *Queries) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE pengeluaran SET nama = ?, jumlah = ?, harga = ?, tanggal = ? WHERE id = ? AND asset_id = ?",
		e.Name, e.Quantity, e.Amount, e.Date.String(), e.ID, e.AssetID)
	if err != nil {
		return storageErr("update expense", err)
	}
	return affectedOne(res, "expense", e.ID)
}

func (q *Queries) DeleteExpense(ctx context.Context, assetID, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM pengeluaran WHERE id = ? AND asset_id = ?", id, assetID)
	if err != nil {
		return storageErr("delete expense", err)
	}
	return affectedOne(res, "expense", id)
}

// --- ayam (stock events) ---

const stockColumns = "id, jumlah, harga, tanggal, asset_id"

func scanStockEvent(s scanner) (core.StockEvent, error) {
	var (
		ev   core.StockEvent
		date string
	)
	err := s.Scan(&ev.ID, &ev.Quantity, &ev.Amount, &date, &ev.AssetID)
	ev.Date = parseStoredDate(date)
	return ev, err
}

func (q *Queries) CreateStockEvent(ctx context.Context, ev core.StockEvent) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO ayam (jumlah, harga, tanggal, asset_id) VALUES (?, ?, ?, ?)",
		ev.Quantity, ev.Amount, ev.Date.String(), ev.AssetID)
	if err != nil {
		return 0, storageErr("create stock event", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetStockEvent(ctx context.Context, assetID, id int64) (core.StockEvent, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+stockColumns+" FROM ayam WHERE id = ? AND asset_id = ?", id, assetID)
	ev, err := scanStockEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ev, notFound("stock event", id)
	}
	if err != nil {
		return ev, storageErr("get stock event", err)
	}
	return ev, nil
}

func (q *Queries) ListStockEvents(ctx context.Context, assetID int64, newestFirst bool) ([]core.StockEvent, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+stockColumns+" FROM ayam WHERE asset_id = ? ORDER BY id "+order(newestFirst), assetID)
	if err != nil {
		return nil, storageErr("list stock events", err)
	}
	defer rows.Close()

	var out []core.StockEvent
	for rows.Next() {
		ev, err := scanStockEvent(rows)
		if err != nil {
			return nil, storageErr("scan stock event", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list stock events", err)
	}
	return out, nil
}

// SumStock is the net number of chickens on hand.
func (q *Queries) SumStock(ctx context.Context, assetID int64) (int64, error) {
	return q.sum(ctx, "sum stock", "SELECT COALESCE(SUM(jumlah), 0) FROM ayam WHERE asset_id = ?", assetID)
}

func (q *Queries) UpdateStockEvent(ctx context.Context, ev core.StockEvent) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE ayam SET jumlah = ?, harga = ?, tanggal = ? WHERE id = ? AND asset_id = ?",
		ev.Quantity, ev.Amount, ev.Date.String(), ev.ID, ev.AssetID)
	if err != nil {
		return storageErr("update stock event", err)
	}
	return affectedOne(res, "stock event", ev.ID)
}

func (q *Queries) DeleteStockEvent(ctx context.Context, assetID, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM ayam WHERE id = ? AND asset_id = ?", id, assetID)
	if err != nil {
		return storageErr("delete stock event", err)
	}
	return affectedOne(res, "stock event", id)
}

// --- pemasukan (income) ---

const incomeColumns = "id, jumlah, harga, total, tanggal, asset_id"

func scanIncome(s scanner) (core.Income, error) {
	var (
		in   core.Income
		date string
	)
	err := s.Scan(&in.ID, &in.Quantity, &in.UnitPrice, &in.Total, &date, &in.AssetID)
	in.Date = parseStoredDate(date)
	return in, err
}

func (q *Queries) CreateIncome(ctx context.Context, in core.Income) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO pemasukan (jumlah, harga, total, tanggal, asset_id) VALUES (?, ?, ?, ?, ?)",
		in.Quantity, in.UnitPrice, in.Total, in.Date.String(), in.AssetID)
	if err != nil {
		return 0, storageErr("create income", err)
	}
	return res.LastInsertId()
}

func (q *Queries) GetIncome(ctx context.Context, assetID, id int64) (core.Income, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+incomeColumns+" FROM pemasukan WHERE id = ? AND asset_id = ?", id, assetID)
	in, err := scanIncome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return in, notFound("income", id)
	}
	if err != nil {
		return in, storageErr("get income", err)
	}
	return in, nil
}

func (q *Queries) ListIncomes(ctx context.Context, assetID int64, newestFirst bool) ([]core.Income, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+incomeColumns+" FROM pemasukan WHERE asset_id = ? ORDER BY id "+order(newestFirst), assetID)
	if err != nil {
		return nil, storageErr("list incomes", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, storageErr("scan income", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list incomes", err)
	}
	return out, nil
}

func (q *Queries) SumIncome(ctx context.Context, assetID int64) (int64, error) {
	return q.sum(ctx, "sum income", "SELECT COALESCE(SUM(total), 0) FROM pemasukan WHERE asset_id = ?", assetID)
}

func (q *Queries) DeleteIncome(ctx context.Context, assetID, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM pemasukan WHERE id = ? AND asset_id = ?", id, assetID)
	if err != nil {
		return storageErr("delete income", err)
	}
	return affectedOne(res, "income", id)
}

// --- tenant-wide ---

// LedgerCounts is the number of rows per ledger table.
type LedgerCounts map[string]int64

func (c LedgerCounts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// CountLedgerRows counts rows of one ledger table for an asset.
func (q *Queries) CountLedgerRows(ctx context.Context, table string, assetID int64) (int64, error) {
	if !isLedgerTable(table) {
		return 0, fmt.Errorf("count rows: unknown table %q", table)
	}
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE asset_id = ?", assetID).Scan(&n)
	if err != nil {
		return 0, storageErr("count "+table, err)
	}
	return n, nil
}

// DeleteLedgers removes every ledger row of an asset and reports what was removed.
func (q *Queries) DeleteLedgers(ctx context.Context, assetID int64) (LedgerCounts, error) {
	removed := make(LedgerCounts, len(LedgerTables))
	for _, table := range LedgerTables {
		res, err := q.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE asset_id = ?", assetID)
		if err != nil {
			return removed, storageErr("clear "+table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, storageErr("clear "+table, err)
		}
		removed[table] = n
	}
	return removed, nil
}

func (q *Queries) sum(ctx context.Context, op, query string, args ...any) (int64, error) {
	var total int64
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, storageErr(op, err)
	}
	return total, nil
}
