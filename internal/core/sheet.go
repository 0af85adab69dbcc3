package core

// AssetSheet is every ledger of one asset, oldest rows first.
type AssetSheet struct {
	Asset       Asset
	FeedItems   []FeedItem
	Expenses    []Expense
	StockEvents []StockEvent
	Incomes     []Income
}

// Rows counts the ledger rows on the sheet.
func (s AssetSheet) Rows() int {
	return len(s.FeedItems) + len(s.Expenses) + len(s.StockEvents) + len(s.Incomes)
}
