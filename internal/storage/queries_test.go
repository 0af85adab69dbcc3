package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ternak/internal/core"
)

func TestListExpensesPageNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Tx(ctx, func(q *Queries) error {
		for i := 1; i <= 7; i++ {
			_, err := q.CreateExpense(ctx, core.Expense{
				Name: "Pakan", Quantity: int64(i), Amount: int64(i * 1000),
				Date: core.NewDate(2025, 3, i), AssetID: 1,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, repo.Read(ctx, func(q *Queries) error {
		page, err := q.ListExpensesPage(ctx, 1, 3, 3)
		require.NoError(t, err)
		require.Len(t, page, 3)
		// ids 7..1 newest first; offset 3 yields the 4th to 6th rows.
		assert.Equal(t, []int64{4, 3, 2}, []int64{page[0].ID, page[1].ID, page[2].ID})

		n, err := q.CountExpenses(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
		return nil
	}))
}

func TestSumsAreZeroOnEmptyLedgers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Read(ctx, func(q *Queries) error {
		for name, fn := range map[string]func() (int64, error){
			"expenses": func() (int64, error) { return q.SumExpenses(ctx, 1) },
			"since":    func() (int64, error) { return q.SumExpensesSince(ctx, 1, core.NewDate(2025, 1, 1)) },
			"month":    func() (int64, error) { return q.SumExpensesInMonth(ctx, 1, "2025-01") },
			"income":   func() (int64, error) { return q.SumIncome(ctx, 1) },
			"stock":    func() (int64, error) { return q.SumStock(ctx, 1) },
		} {
			v, err := fn()
			require.NoError(t, err, name)
			assert.Zero(t, v, name)
		}
		cats, err := q.ExpenseCategories(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, cats)
		return nil
	}))
}

func TestDeleteLedgersOnlyTouchesOneAsset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	day := core.NewDate(2025, 4, 1)

	require.NoError(t, repo.Tx(ctx, func(q *Queries) error {
		if err := q.CreateAssetWithID(ctx, 2, "Kandang B"); err != nil {
			return err
		}
		for _, asset := range []int64{1, 2} {
			if _, err := q.CreateFeedItem(ctx, core.FeedItem{Name: "Pakan", UnitPrice: 10, AssetID: asset}); err != nil {
				return err
			}
			if _, err := q.CreateExpense(ctx, core.Expense{Name: "Pakan", Quantity: 1, Amount: 10, Date: day, AssetID: asset}); err != nil {
				return err
			}
			if _, err := q.CreateStockEvent(ctx, core.StockEvent{Quantity: 5, Amount: 10, Date: day, AssetID: asset}); err != nil {
				return err
			}
			if _, err := q.CreateIncome(ctx, core.Income{Quantity: 1, UnitPrice: 10, Total: 10, Date: day, AssetID: asset}); err != nil {
				return err
			}
		}
		return nil
	}))

	var removed LedgerCounts
	require.NoError(t, repo.Tx(ctx, func(q *Queries) error {
		var err error
		removed, err = q.DeleteLedgers(ctx, 2)
		return err
	}))
	assert.Equal(t, int64(4), removed.Total())

	require.NoError(t, repo.Read(ctx, func(q *Queries) error {
		for _, table := range LedgerTables {
			n, err := q.CountLedgerRows(ctx, table, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n, table)

			n, err = q.CountLedgerRows(ctx, table, 2)
			require.NoError(t, err)
			assert.Zero(t, n, table)
		}
		return nil
	}))
}

func TestParseStoredDateToleratesTimestamps(t *testing.T) {
	assert.Equal(t, "2024-11-05", parseStoredDate("2024-11-05T10:00:00.000Z").String())
	assert.True(t, parseStoredDate("garbage").IsZero())
}
