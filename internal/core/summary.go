package core

import "math"

// CategoryAmount is one slice of the expense chart.
type CategoryAmount struct {
	Name   string
	Amount int64
}

// Dashboard is everything the home page shows for one asset.
type Dashboard struct {
	AssetID int64

	Expenses   []Expense
	Page       int
	PerPage    int
	TotalRows  int64
	TotalPages int

	WeekTotal    int64
	MonthTotal   int64
	ExpenseTotal int64
	IncomeTotal  int64
	StockCount   int64
	NetPosition  int64

	Categories []CategoryAmount
}

// StockSummary backs the stock page totals.
type StockSummary struct {
	ExpenseTotal int64
	IncomeTotal  int64
	NetPosition  int64
	StockCount   int64
}

// NetPosition is income minus expense: positive means the asset made money.
func NetPosition(incomeTotal, expenseTotal int64) int64 {
	return incomeTotal - expenseTotal
}

// TotalPages is ceil(count/perPage); zero rows yield zero pages.
func TotalPages(count int64, perPage int) int {
	if count <= 0 || perPage <= 0 {
		return 0
	}
	return int((count + int64(perPage) - 1) / int64(perPage))
}

// Offset converts a 1-based page into a row offset, clamping page to 1.
func Offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/perPage {
		return math.MaxInt
	}
	return (page - 1) * perPage
}

func (d Dashboard) HasPrev() bool { return d.Page > 1 }

func (d Dashboard) HasNext() bool { return d.Page < d.TotalPages }

func (d Dashboard) PrevPage() int { return d.Page - 1 }

func (d Dashboard) NextPage() int { return d.Page + 1 }

// CategoryLabels and CategoryValues split the breakdown for the chart.
func (d Dashboard) CategoryLabels() []string {
	out := make([]string, 0, len(d.Categories))
	for _, c := range d.Categories {
		out = append(out, c.Name)
	}
	return out
}

func (d Dashboard) CategoryValues() []int64 {
	out := make([]int64, 0, len(d.Categories))
	for _, c := range d.Categories {
		out = append(out, c.Amount)
	}
	return out
}
