package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ternak/internal/core"
	"ternak/internal/storage"
)

// Dashboard aggregates the home page for one asset. page is clamped to 1;
// perPage <= 0 falls back to the configured page size.
func (s *LedgerService) Dashboard(ctx context.Context, assetID int64, now time.Time, page, perPage int) (core.Dashboard, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.pageSize
	}

	d := core.Dashboard{AssetID: assetID, Page: page, PerPage: perPage}
	today := core.Today(now)
	weekStart := core.Date{Time: today.AddDate(0, 0, -7)}

	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			var err error
			d.Expenses, err = q.ListExpensesPage(gctx, assetID, perPage, core.Offset(page, perPage))
			return err
		})
		g.Go(func() error {
			var err error
			d.TotalRows, err = q.CountExpenses(gctx, assetID)
			return err
		})
		g.Go(func() error {
			var err error
			d.WeekTotal, err = q.SumExpensesSince(gctx, assetID, weekStart)
			return err
		})
		g.Go(func() error {
			var err error
			d.MonthTotal, err = q.SumExpensesInMonth(gctx, assetID, today.MonthKey())
			return err
		})
		g.Go(func() error {
			var err error
			d.ExpenseTotal, err = q.SumExpenses(gctx, assetID)
			return err
		})
		g.Go(func() error {
			var err error
			d.IncomeTotal, err = q.SumIncome(gctx, assetID)
			return err
		})
		g.Go(func() error {
			var err error
			d.StockCount, err = q.SumStock(gctx, assetID)
			return err
		})
		g.Go(func() error {
			var err error
			d.Categories, err = q.ExpenseCategories(gctx, assetID)
			return err
		})

		return g.Wait()
	})
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("dashboard for asset %d: %w", assetID, err)
	}

	d.TotalPages = core.TotalPages(d.TotalRows, perPage)
	d.NetPosition = core.NetPosition(d.IncomeTotal, d.ExpenseTotal)
	return d, nil
}

// StockSummary returns the totals shown above the stock ledger.
func (s *LedgerService) StockSummary(ctx context.Context, assetID int64) (core.StockSummary, error) {
	var sum core.StockSummary

	err := s.storage.Read(ctx, func(q *storage.Queries) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			sum.ExpenseTotal, err = q.SumExpenses(gctx, assetID)
			return err
		})
		g.Go(func() error {
			var err error
			sum.IncomeTotal, err = q.SumIncome(gctx, assetID)
			return err
		})
		g.Go(func() error {
			var err error
			sum.StockCount, err = q.SumStock(gctx, assetID)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return core.StockSummary{}, fmt.Errorf("stock summary for asset %d: %w", assetID, err)
	}

	sum.NetPosition = core.NetPosition(sum.IncomeTotal, sum.ExpenseTotal)
	return sum, nil
}
