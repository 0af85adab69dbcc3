package services

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ternak/internal/amqp"
	"ternak/internal/core"
	"ternak/internal/storage"
)

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return p.err
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind+":"+e.Action)
	}
	return out
}

func newTestService(t *testing.T) (*LedgerService, *storage.SQLiteRepository, *recordingPublisher) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ternak.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	pub := &recordingPublisher{}
	svc := NewLedgerService(repo, pub, 3).WithClock(func() time.Time { return fixedNow })
	return svc, repo, pub
}

func TestNetPositionIsIncomeMinusExpense(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordChickPurchase(ctx, 1, 100, 500000)
	require.NoError(t, err)
	_, err = svc.RecordSale(ctx, 1, 10, 35000)
	require.NoError(t, err)

	d, err := svc.Dashboard(ctx, 1, fixedNow, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), d.ExpenseTotal)
	assert.Equal(t, int64(350000), d.IncomeTotal)
	assert.Equal(t, int64(-150000), d.NetPosition)
	assert.Equal(t, int64(90), d.StockCount)

	sum, err := svc.StockSummary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.StockSummary{ExpenseTotal: 500000, IncomeTotal: 350000, NetPosition: -150000, StockCount: 90}, sum)
}

func TestRecordSalePairsIncomeAndStockEvent(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	in, err := svc.RecordSale(ctx, 1, 4, 40000)
	require.NoError(t, err)
	assert.Equal(t, int64(160000), in.Total)
	assert.Equal(t, "2025-03-15", in.Date.String())

	events, err := svc.ListStockEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(-4), events[0].Quantity)
	assert.Equal(t, int64(40000), events[0].Amount)
	assert.Equal(t, in.Date, events[0].Date)

	assert.Equal(t, []string{"pemasukan:created", "ayam:created"}, pub.kinds())
}

func TestRecordSaleRejectsOverflowWithoutWriting(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, 1, 1<<40, 1<<40)
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	incomes, err := svc.ListIncomes(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, incomes)
}

func TestRecordChickPurchaseBooksExpense(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ev, err := svc.RecordChickPurchase(ctx, 1, 50, 250000)
	require.NoError(t, err)
	assert.Equal(t, int64(50), ev.Quantity)

	d, err := svc.Dashboard(ctx, 1, fixedNow, 1, 3)
	require.NoError(t, err)
	require.Len(t, d.Expenses, 1)
	assert.Equal(t, core.ChickPurchaseName, d.Expenses[0].Name)
	assert.Equal(t, int64(250000), d.Expenses[0].Amount)
	assert.Equal(t, int64(50), d.Expenses[0].Quantity)

	_, err = svc.RecordChickPurchase(ctx, 1, 0, 1000)
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)
}

func TestRecordExpenseUsesOldestFeedPrice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordFeedItem(ctx, 1, "Pakan BR1", 9000)
	require.NoError(t, err)
	_, err = svc.RecordFeedItem(ctx, 1, "Pakan BR1", 12000)
	require.NoError(t, err)

	e, err := svc.RecordExpense(ctx, 1, "Pakan BR1", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(27000), e.Amount)
	assert.Equal(t, "2025-03-15", e.Date.String())

	_, err = svc.RecordExpense(ctx, 1, "Jagung", 1)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.RecordExpense(ctx, 2, "Pakan BR1", 1)
	assert.ErrorIs(t, err, core.ErrNotFound, "feed catalog is per asset")
}

func TestDashboardPageBeyondRangeIsEmpty(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Tx(ctx, func(q *storage.Queries) error {
		for i := 1; i <= 7; i++ {
			if _, err := q.CreateExpense(ctx, core.Expense{
				Name: "Pakan", Quantity: 1, Amount: 100,
				Date: core.NewDate(2025, 3, i), AssetID: 1,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	for _, page := range []int{4, math.MaxInt/3 + 2, math.MaxInt} {
		d, err := svc.Dashboard(ctx, 1, fixedNow, page, 3)
		require.NoError(t, err)
		assert.Empty(t, d.Expenses, "page %d", page)
		assert.Equal(t, 3, d.TotalPages)
		assert.False(t, d.HasNext())
	}
}

func TestDashboardPagination(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.Dashboard(ctx, 1, fixedNow, 1, 3)
	require.NoError(t, err)
	assert.Zero(t, d.TotalPages)
	assert.Empty(t, d.Expenses)
	assert.Zero(t, d.WeekTotal)

	require.NoError(t, repo.Tx(ctx, func(q *storage.Queries) error {
		for i := 1; i <= 7; i++ {
			if _, err := q.CreateExpense(ctx, core.Expense{
				Name: "Pakan", Quantity: 1, Amount: int64(i * 100),
				Date: core.NewDate(2025, 3, i), AssetID: 1,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	d, err = svc.Dashboard(ctx, 1, fixedNow, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, d.TotalPages)
	assert.Equal(t, int64(7), d.TotalRows)
	require.Len(t, d.Expenses, 3)
	assert.Equal(t, []int64{4, 3, 2}, []int64{d.Expenses[0].ID, d.Expenses[1].ID, d.Expenses[2].ID})
	assert.True(t, d.HasPrev())
	assert.True(t, d.HasNext())

	d, err = svc.Dashboard(ctx, 1, fixedNow, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Page)
	assert.Equal(t, 3, d.PerPage, "perPage falls back to the configured size")

	// Every row is dated before 2025-03-08.
	assert.Zero(t, d.WeekTotal)
	assert.Equal(t, int64(2800), d.MonthTotal)
	assert.Equal(t, int64(2800), d.ExpenseTotal)
	require.Len(t, d.Categories, 1)
	assert.Equal(t, core.CategoryAmount{Name: "Pakan", Amount: 2800}, d.Categories[0])
}

func TestDashboardWeekAndMonthWindows(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Tx(ctx, func(q *storage.Queries) error {
		for _, e := range []core.Expense{
			{Name: "Vitamin", Quantity: 1, Amount: 1000, Date: core.NewDate(2025, 3, 8)},
			{Name: "Vitamin", Quantity: 1, Amount: 2000, Date: core.NewDate(2025, 3, 7)},
			{Name: "Sekam", Quantity: 1, Amount: 4000, Date: core.NewDate(2025, 2, 28)},
		} {
			e.AssetID = 1
			if _, err := q.CreateExpense(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	d, err := svc.Dashboard(ctx, 1, fixedNow, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), d.WeekTotal)
	assert.Equal(t, int64(3000), d.MonthTotal)
	assert.Equal(t, int64(7000), d.ExpenseTotal)
	assert.Equal(t, []string{"Sekam", "Vitamin"}, d.CategoryLabels())
	assert.Equal(t, []int64{4000, 3000}, d.CategoryValues())
}

func TestClearTenantData(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	second, err := svc.CreateAsset(ctx, "Kandang B")
	require.NoError(t, err)
	for _, asset := range []int64{1, second.ID} {
		_, err := svc.RecordChickPurchase(ctx, asset, 10, 10000)
		require.NoError(t, err)
		_, err = svc.RecordSale(ctx, asset, 2, 30000)
		require.NoError(t, err)
	}

	_, err = svc.ClearTenantData(ctx, second.ID, "hapus")
	require.ErrorIs(t, err, core.ErrInvalidConfirmation)
	sum, err := svc.StockSummary(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), sum.StockCount, "wrong token must not mutate")

	removed, err := svc.ClearTenantData(ctx, second.ID, core.ClearConfirmation)
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed.Total())

	sum, err = svc.StockSummary(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StockSummary{}, sum)

	sum, err = svc.StockSummary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(8), sum.StockCount)
	assert.Equal(t, int64(60000), sum.IncomeTotal)

	_, err = svc.GetAsset(ctx, second.ID)
	assert.NoError(t, err, "clearing keeps the asset")
	assert.Contains(t, pub.kinds(), "asset:cleared")
}

func TestDeleteTenantRecreatesDefaultAsset(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordFeedItem(ctx, 1, "Dedak", 3000)
	require.NoError(t, err)

	removed, err := svc.DeleteTenant(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed.Total())

	a, err := svc.GetAsset(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Asset 1", a.Name)

	items, err := svc.ListFeedItems(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.DeleteTenant(ctx, 99)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMutationsEnforceTenantOwnership(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	other, err := svc.CreateAsset(ctx, "Kandang B")
	require.NoError(t, err)

	f, err := svc.RecordFeedItem(ctx, 1, "Konsentrat", 7000)
	require.NoError(t, err)
	ev, err := svc.RecordChickPurchase(ctx, 1, 20, 100000)
	require.NoError(t, err)
	in, err := svc.RecordSale(ctx, 1, 1, 30000)
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
	}{
		{"update feed item", func() error {
			return svc.UpdateFeedItem(ctx, core.FeedItem{ID: f.ID, Name: "X", UnitPrice: 1, AssetID: other.ID})
		}},
		{"delete feed item", func() error { return svc.DeleteFeedItem(ctx, other.ID, f.ID) }},
		{"update stock event", func() error {
			return svc.UpdateStockEvent(ctx, core.StockEvent{ID: ev.ID, Quantity: 1, Amount: 1, Date: core.Today(fixedNow), AssetID: other.ID})
		}},
		{"delete stock event", func() error { return svc.DeleteStockEvent(ctx, other.ID, ev.ID) }},
		{"delete income", func() error { return svc.DeleteIncome(ctx, other.ID, in.ID) }},
		{"delete expense", func() error { return svc.DeleteExpense(ctx, other.ID, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), core.ErrNotFound)
		})
	}

	got, err := svc.GetFeedItem(ctx, 1, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Konsentrat", got.Name)
}

func TestUpdateAndDeleteRows(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	f, err := svc.RecordFeedItem(ctx, 1, "Dedak", 3000)
	require.NoError(t, err)
	f.UnitPrice = 3500
	require.NoError(t, svc.UpdateFeedItem(ctx, f))
	got, err := svc.GetFeedItem(ctx, 1, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3500), got.UnitPrice)

	ev, err := svc.RecordChickPurchase(ctx, 1, 10, 50000)
	require.NoError(t, err)
	ev.Quantity = 12
	require.NoError(t, svc.UpdateStockEvent(ctx, ev))
	gotEv, err := svc.GetStockEvent(ctx, 1, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), gotEv.Quantity)

	ev.Quantity = 0
	assert.ErrorIs(t, svc.UpdateStockEvent(ctx, ev), core.ErrInvalidQuantity)

	e, err := svc.GetExpense(ctx, 1, 1)
	require.NoError(t, err)
	e.Amount = 45000
	require.NoError(t, svc.UpdateExpense(ctx, e))

	require.NoError(t, svc.DeleteExpense(ctx, 1, e.ID))
	assert.ErrorIs(t, svc.DeleteExpense(ctx, 1, e.ID), core.ErrNotFound)
	require.NoError(t, svc.DeleteFeedItem(ctx, 1, f.ID))
	require.NoError(t, svc.DeleteStockEvent(ctx, 1, ev.ID))
}

func TestPublisherFailureDoesNotFailMutation(t *testing.T) {
	svc, _, pub := newTestService(t)
	pub.err = errors.New("broker down")

	_, err := svc.CreateAsset(context.Background(), "Kandang C")
	assert.NoError(t, err)
	assert.Len(t, pub.kinds(), 1)
}

func TestNilPublisherIsAllowed(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ternak.db"))
	require.NoError(t, err)
	defer repo.Close()

	svc := NewLedgerService(repo, nil, 0)
	assert.Equal(t, 3, svc.PageSize())
	_, err = svc.RecordFeedItem(context.Background(), 1, "Dedak", 3000)
	assert.NoError(t, err)
}

func TestCreateAssetRejectsEmptyName(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreateAsset(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrEmptyName)
}
