package sheets

import "ternak/internal/core"

// Section headings and column headers as they appear on a tab.
var (
	feedHeader    = []any{"ID", "Nama", "Harga"}
	expenseHeader = []any{"ID", "Tanggal", "Nama", "Jumlah", "Harga"}
	stockHeader   = []any{"ID", "Tanggal", "Jumlah", "Harga"}
	incomeHeader  = []any{"ID", "Tanggal", "Jumlah", "Harga", "Total"}
)

const (
	SectionFeed    = "Kebutuhan"
	SectionExpense = "Pengeluaran"
	SectionStock   = "Ayam"
	SectionIncome  = "Pemasukan"
)

// Layout renders the sheet as spreadsheet rows: a title block with the
// running totals, then one section per ledger separated by a blank row.
// Amounts are whole Rupiah.
func Layout(sheet core.AssetSheet) [][]any {
	var expenseTotal, incomeTotal, stock int64
	for _, e := range sheet.Expenses {
		expenseTotal += e.Amount
	}
	for _, in := range sheet.Incomes {
		incomeTotal += in.Total
	}
	for _, ev := range sheet.StockEvents {
		stock += ev.Quantity
	}

	rows := [][]any{
		{"Asset", sheet.Asset.ID, sheet.Asset.Name},
		{"Pengeluaran", expenseTotal},
		{"Pemasukan", incomeTotal},
		{"Bersih", core.NetPosition(incomeTotal, expenseTotal)},
		{"Stok Ayam", stock},
	}

	rows = append(rows, []any{}, []any{SectionFeed}, feedHeader)
	for _, f := range sheet.FeedItems {
		rows = append(rows, []any{f.ID, f.Name, f.UnitPrice})
	}

	rows = append(rows, []any{}, []any{SectionExpense}, expenseHeader)
	for _, e := range sheet.Expenses {
		rows = append(rows, []any{e.ID, e.Date.String(), e.Name, e.Quantity, e.Amount})
	}

	rows = append(rows, []any{}, []any{SectionStock}, stockHeader)
	for _, ev := range sheet.StockEvents {
		rows = append(rows, []any{ev.ID, ev.Date.String(), ev.Quantity, ev.Amount})
	}

	rows = append(rows, []any{}, []any{SectionIncome}, incomeHeader)
	for _, in := range sheet.Incomes {
		rows = append(rows, []any{in.ID, in.Date.String(), in.Quantity, in.UnitPrice, in.Total})
	}

	return rows
}
