package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ternak/internal/amqp"
	"ternak/internal/core"
	applog "ternak/internal/log"
	"ternak/internal/storage"
)

// Publisher receives a notification after every committed ledger change.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// LedgerService orchestrates ledger mutations and reads across SQLite and AMQP.
// All operations are scoped to one asset.
type LedgerService struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
	pageSize  int
	now       func() time.Time
	log       *applog.StructuredLogger
}

// NewLedgerService wires the service. publisher may be nil when AMQP is disabled.
func NewLedgerService(storage *storage.SQLiteRepository, publisher Publisher, pageSize int) *LedgerService {
	if pageSize < 1 {
		pageSize = 3
	}
	return &LedgerService{
		storage:   storage,
		publisher: publisher,
		pageSize:  pageSize,
		now:       time.Now,
		log: applog.NewStructuredLogger(applog.New(applog.Config{
			Component: applog.ComponentLedger,
			Handler:   slog.Default().Handler(),
		})),
	}
}

// WithClock replaces the time source used to date new rows.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

func (s *LedgerService) today() core.Date {
	return core.Today(s.now())
}

// PageSize is the default number of expenses per dashboard page.
func (s *LedgerService) PageSize() int {
	return s.pageSize
}

// --- assets ---

func (s *LedgerService) ListAssets(ctx context.Context) ([]core.Asset, error) {
	var assets []core.Asset
	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		var err error
		assets, err = q.ListAssets(ctx)
		return err
	})
	return assets, err
}

func (s *LedgerService) GetAsset(ctx context.Context, id int64) (core.Asset, error) {
	var a core.Asset
	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		var err error
		a, err = q.GetAsset(ctx, id)
		return err
	})
	return a, err
}

func (s *LedgerService) CreateAsset(ctx context.Context, name string) (core.Asset, error) {
	a := core.Asset{Name: strings.TrimSpace(name)}
	if err := a.Validate(); err != nil {
		return a, fmt.Errorf("create asset: %w", err)
	}

	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		var err error
		a.ID, err = q.CreateAsset(ctx, a.Name)
		return err
	})
	if err != nil {
		return a, fmt.Errorf("create asset: %w", err)
	}

	s.publish(ctx, amqp.KindAsset, amqp.ActionCreated, a.ID, a.ID)
	return a, nil
}

// ClearTenantData removes every ledger row of one asset. The asset row stays.
func (s *LedgerService) ClearTenantData(ctx context.Context, assetID int64, confirmation string) (storage.LedgerCounts, error) {
	if confirmation != core.ClearConfirmation {
		return nil, core.ErrInvalidConfirmation
	}

	var removed storage.LedgerCounts
	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		var err error
		removed, err = q.DeleteLedgers(ctx, assetID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("clear asset %d: %w", assetID, err)
	}

	slog.InfoContext(ctx, "Asset ledgers cleared",
		applog.FieldAssetID, assetID,
		applog.FieldOperation, applog.OpClear,
		"rows", removed.Total())
	s.publish(ctx, amqp.KindAsset, amqp.ActionCleared, assetID, 0)
	return removed, nil
}

// DeleteTenant clears an asset and removes it. The default asset is
// recreated empty so there is always a tenant to land on.
func (s *LedgerService) DeleteTenant(ctx context.Context, assetID int64) (storage.LedgerCounts, error) {
	var removed storage.LedgerCounts
	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		var err error
		if removed, err = q.DeleteLedgers(ctx, assetID); err != nil {
			return err
		}
		if err := q.DeleteAsset(ctx, assetID); err != nil {
			return err
		}
		if assetID == core.DefaultAssetID {
			return q.EnsureDefaultAsset(ctx)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete asset %d: %w", assetID, err)
	}

	slog.InfoContext(ctx, "Asset deleted",
		applog.FieldAssetID, assetID,
		applog.FieldOperation, applog.OpDelete,
		"rows", removed.Total())
	s.publish(ctx, amqp.KindAsset, amqp.ActionDeleted, assetID, assetID)
	return removed, nil
}

// --- kebutuhan (feed catalog) ---

func (s *LedgerService) ListFeedItems(ctx context.Context, assetID int64) ([]core.FeedItem, error) {
	var items []core.FeedItem
	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		var err error
		items, err = q.ListFeedItems(ctx, assetID)
		return err
	})
	return items, err
}

func (s *LedgerService) GetFeedItem(ctx context.Context, assetID, id int64) (core.FeedItem, error) {
	var f core.FeedItem
	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		var err error
		f, err = q.GetFeedItem(ctx, assetID, id)
		return err
	})
	return f, err
}

func (s *LedgerService) RecordFeedItem(ctx context.Context, assetID int64, name string, unitPrice int64) (core.FeedItem, error) {
	f := core.FeedItem{Name: strings.TrimSpace(name), UnitPrice: unitPrice, AssetID: assetID}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("record feed item: %w", err)
	}

	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		var err error
		f.ID, err = q.CreateFeedItem(ctx, f)
		return err
	})
	if err != nil {
		return f, fmt.Errorf("record feed item: %w", err)
	}

	s.logMutation(ctx, applog.OpCreate, amqp.KindFeedItem, assetID, f.ID, 0, f.UnitPrice)
	s.publish(ctx, amqp.KindFeedItem, amqp.ActionCreated, assetID, f.ID)
	return f, nil
}

func (s *LedgerService) UpdateFeedItem(ctx context.Context, f core.FeedItem) error {
	f.Name = strings.TrimSpace(f.Name)
	if err := f.Validate(); err != nil {
		return fmt.Errorf("update feed item: %w", err)
	}

	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		return q.UpdateFeedItem(ctx, f)
	})
	if err != nil {
		return fmt.Errorf("update feed item: %w", err)
	}

	s.logMutation(ctx, applog.OpUpdate, amqp.KindFeedItem, f.AssetID, f.ID, 0, f.UnitPrice)
	s.publish(ctx, amqp.KindFeedItem, amqp.ActionUpdated, f.AssetID, f.ID)
	return nil
}

func (s *LedgerService) DeleteFeedItem(ctx context.Context, assetID, id int64) error {
	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		return q.DeleteFeedItem(ctx, assetID, id)
	})
	if err != nil {
		return fmt.Errorf("delete feed item: %w", err)
	}

	s.publish(ctx, amqp.KindFeedItem, amqp.ActionDeleted, assetID, id)
	return nil
}

// --- pengeluaran (expenses) ---

// RecordExpense books quantity units of a named feed item at its current
// price, dated today.
func (s *LedgerService) RecordExpense(ctx context.Context, assetID int64, feedName string, quantity int64) (core.Expense, error) {
	e := core.Expense{Name: strings.TrimSpace(feedName), Quantity: quantity, Date: s.today(), AssetID: assetID}
	if quantity <= 0 {
		return e, fmt.Errorf("record expense: %w", core.ErrInvalidQuantity)
	}

	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		feed, err := q.FindFeedItemByName(ctx, assetID, e.Name)
		if err != nil {
			return err
		}
		if e.Amount, err = core.MulAmount(quantity, feed.UnitPrice); err != nil {
			return err
		}
		if err := e.Validate(); err != nil {
			return err
		}
		e.ID, err = q.CreateExpense(ctx, e)
		return err
	})
	if err != nil {
		return e, fmt.Errorf("record expense: %w", err)
	}

	s.logMutation(ctx, applog.OpCreate, amqp.KindExpense, assetID, e.ID, e.Quantity, e.Amount)
	s.publish(ctx, amqp.KindExpense, amqp.ActionCreated, assetID, e.ID)
	return e, nil
}

// ListExpenses returns every expense of the asset, newest first.
func (s *LedgerService) ListExpenses(ctx context.Context, assetID int64) ([]core.Expense, error) {
	var expenses []core.Expense
	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		var err error
		expenses, err = q.ListExpenses(ctx, assetID, true)
		return err
	})
	return expenses, err
}

func (s *LedgerService) GetExpense(ctx context.Context, assetID, id int64) (core.Expense, error) {
	var e core.Expense
	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		var err error
		e, err = q.GetExpense(ctx, assetID, id)
		return err
	})
	return e, err
}

func (s *LedgerService) UpdateExpense(ctx context.Context, e core.Expense) error {
	e.Name = strings.TrimSpace(e.Name)
	if err := e.Validate(); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		return q.UpdateExpense(ctx, e)
	})
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	s.logMutation(ctx, applog.OpUpdate, amqp.KindExpense, e.AssetID, e.ID, e.Quantity, e.Amount)
	s.publish(ctx, amqp.KindExpense, amqp.ActionUpdated, e.AssetID, e.ID)
	return nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, assetID, id int64) error {
	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		return q.DeleteExpense(ctx, assetID, id)
	})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.publish(ctx, amqp.KindExpense, amqp.ActionDeleted, assetID, id)
	return nil
}

// --- ayam (stock) ---

func (s *LedgerService) ListStockEvents(ctx context.Context, assetID int64) ([]core.StockEvent, error) {
	var events []core.StockEvent
	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		var err error
		events, err = q.ListStockEvents(ctx, assetID, true)
		return err
	})
	return events, err
}

func (s *LedgerService) GetStockEvent(ctx context.Context, assetID, id int64) (core.StockEvent, error) {
	var ev core.StockEvent
	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		var err error
		ev, err = q.GetStockEvent(ctx, assetID, id)
		return err
	})
	return ev, err
}

// RecordChickPurchase adds quantity chickens bought for a lump sum and books
// the matching expense on the same day.
func (s *LedgerService) RecordChickPurchase(ctx context.Context, assetID, quantity, amount int64) (core.StockEvent, error) {
	day := s.today()
	ev := core.StockEvent{Quantity: quantity, Amount: amount, Date: day, AssetID: assetID}
	if quantity <= 0 {
		return ev, fmt.Errorf("record chick purchase: %w", core.ErrInvalidQuantity)
	}
	if err := ev.Validate(); err != nil {
		return ev, fmt.Errorf("record chick purchase: %w", err)
	}
	expense := core.Expense{Name: core.ChickPurchaseName, Quantity: quantity, Amount: amount, Date: day, AssetID: assetID}

	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		var err error
		if ev.ID, err = q.CreateStockEvent(ctx, ev); err != nil {
			return err
		}
		expense.ID, err = q.CreateExpense(ctx, expense)
		return err
	})
	if err != nil {
		return ev, fmt.Errorf("record chick purchase: %w", err)
	}

	s.logMutation(ctx, applog.OpCreate, amqp.KindStockEvent, assetID, ev.ID, ev.Quantity, ev.Amount)
	s.publish(ctx, amqp.KindStockEvent, amqp.ActionCreated, assetID, ev.ID)
	s.publish(ctx, amqp.KindExpense, amqp.ActionCreated, assetID, expense.ID)
	return ev, nil
}

// UpdateStockEvent overwrites one stock row. The paired expense, if any, is
// left as booked.
func (s *LedgerService) UpdateStockEvent(ctx context.Context, ev core.StockEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("update stock event: %w", err)
	}

	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		return q.UpdateStockEvent(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("update stock event: %w", err)
	}

	s.logMutation(ctx, applog.OpUpdate, amqp.KindStockEvent, ev.AssetID, ev.ID, ev.Quantity, ev.Amount)
	s.publish(ctx, amqp.KindStockEvent, amqp.ActionUpdated, ev.AssetID, ev.ID)
	return nil
}

func (s *LedgerService) DeleteStockEvent(ctx context.Context, assetID, id int64) error {
	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		return q.DeleteStockEvent(ctx, assetID, id)
	})
	if err != nil {
		return fmt.Errorf("delete stock event: %w", err)
	}

	s.publish(ctx, amqp.KindStockEvent, amqp.ActionDeleted, assetID, id)
	return nil
}

// --- pemasukan (income) ---

func (s *LedgerService) ListIncomes(ctx context.Context, assetID int64) ([]core.Income, error) {
	var incomes []core.Income
	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		var err error
		incomes, err = q.ListIncomes(ctx, assetID, true)
		return err
	})
	return incomes, err
}

// RecordSale books the income of selling quantity chickens and removes them
// from stock on the same day.
func (s *LedgerService) RecordSale(ctx context.Context, assetID, quantity, unitPrice int64) (core.Income, error) {
	day := s.today()
	in := core.Income{Quantity: quantity, UnitPrice: unitPrice, Date: day, AssetID: assetID}

	total, err := core.MulAmount(quantity, unitPrice)
	if err != nil {
		return in, fmt.Errorf("record sale: %w", err)
	}
	in.Total = total
	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("record sale: %w", err)
	}
	ev := core.StockEvent{Quantity: -quantity, Amount: unitPrice, Date: day, AssetID: assetID}

	err = s.storage.Tx(ctx, func(q *storage.Queries) error {
		var err error
		if in.ID, err = q.CreateIncome(ctx, in); err != nil {
			return err
		}
		ev.ID, err = q.CreateStockEvent(ctx, ev)
		return err
	})
	if err != nil {
		return in, fmt.Errorf("record sale: %w", err)
	}

	s.logMutation(ctx, applog.OpCreate, amqp.KindIncome, assetID, in.ID, in.Quantity, in.Total)
	s.publish(ctx, amqp.KindIncome, amqp.ActionCreated, assetID, in.ID)
	s.publish(ctx, amqp.KindStockEvent, amqp.ActionCreated, assetID, ev.ID)
	return in, nil
}

// DeleteIncome removes the income row only; the stock movement recorded with
// the sale stays.
func (s *LedgerService) DeleteIncome(ctx context.Context, assetID, id int64) error {
	err := s.storage.Tx(ctx, func(q *storage.Queries) error {
		return q.DeleteIncome(ctx, assetID, id)
	})
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}

	s.publish(ctx, amqp.KindIncome, amqp.ActionDeleted, assetID, id)
	return nil
}

func (s *LedgerService) logMutation(ctx context.Context, op, ledger string, assetID, rowID, quantity, amount int64) {
	s.log.LogLedgerMutation(ctx, op, ledger, assetID, rowID, quantity, amount)
}

// publish is best effort: the row is already committed, so a broker failure
// is logged and swallowed.
func (s *LedgerService) publish(ctx context.Context, kind, action string, assetID, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(kind, action, assetID, id)); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"kind", kind,
			"action", action,
			applog.FieldAssetID, assetID,
			applog.FieldError, err)
	}
}
