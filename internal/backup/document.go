// Package backup moves ledger data in and out of the store: structured JSON
// documents per asset, raw copies of the database file, legacy seed files and
// scheduled backups.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ternak/internal/core"
)

const (
	// DocumentDateLayout stamps export_date.
	DocumentDateLayout = time.RFC3339

	jsonPrefix = "data_export_"
	rawPrefix  = "ternak_backup_"
)

// Document is the structured backup format.
type Document struct {
	ExportDate string       `json:"export_date"`
	Assets     []AssetEntry `json:"assets"`
}

// AssetEntry carries one asset and its four ledgers.
type AssetEntry struct {
	Asset AssetRef   `json:"asset"`
	Data  LedgerData `json:"data"`
}

// AssetRef identifies the target asset of an entry. A nil ID asks the
// importer to create a new asset.
type AssetRef struct {
	ID   *int64 `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type LedgerData struct {
	Pengeluaran []ExpenseRow `json:"pengeluaran"`
	Kebutuhan   []FeedRow    `json:"kebutuhan"`
	Ayam        []StockRow   `json:"ayam"`
	Pemasukan   []IncomeRow  `json:"pemasukan"`
}

// Rows mirror the table columns so documents from older app revisions load.

type FeedRow struct {
	ID      int64  `json:"id,omitempty"`
	Nama    string `json:"nama"`
	Harga   Number `json:"harga"`
	AssetID int64  `json:"asset_id,omitempty"`
}

type ExpenseRow struct {
	ID      int64  `json:"id,omitempty"`
	Nama    string `json:"nama"`
	Jumlah  Number `json:"jumlah"`
	Harga   Number `json:"harga"`
	Tanggal string `json:"tanggal"`
	AssetID int64  `json:"asset_id,omitempty"`
}

type StockRow struct {
	ID      int64  `json:"id,omitempty"`
	Jumlah  Number `json:"jumlah"`
	Harga   Number `json:"harga"`
	Tanggal string `json:"tanggal"`
	AssetID int64  `json:"asset_id,omitempty"`
}

type IncomeRow struct {
	ID      int64  `json:"id,omitempty"`
	Jumlah  Number `json:"jumlah"`
	Harga   Number `json:"harga"`
	Total   Number `json:"total"`
	Tanggal string `json:"tanggal"`
	AssetID int64  `json:"asset_id,omitempty"`
}

// Number is an integer column value. It accepts JSON numbers, numeric
// strings and null; anything unreadable decodes as 0. Values whose integer
// part does not fit in int64 are rejected.
type Number int64

var (
	numberMax = decimal.NewFromInt(math.MaxInt64)
	numberMin = decimal.NewFromInt(math.MinInt64)
)

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		*n = 0
		return nil
	}
	whole := d.Truncate(0)
	if whole.GreaterThan(numberMax) || whole.LessThan(numberMin) {
		return fmt.Errorf("number %s out of range: %w", raw, core.ErrInvalidFormat)
	}
	*n = Number(whole.IntPart())
	return nil
}

// Int64 returns the plain value.
func (n Number) Int64() int64 { return int64(n) }

// DecodeDocument parses a whole document before anything touches the store.
func DecodeDocument(data []byte) (Document, error) {
	var shape struct {
		Assets json.RawMessage `json:"assets"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return Document{}, fmt.Errorf("decode backup document: %w: %w", core.ErrInvalidFormat, err)
	}
	if len(shape.Assets) == 0 || bytes.Equal(shape.Assets, []byte("null")) {
		return Document{}, fmt.Errorf("decode backup document: %w: missing assets", core.ErrInvalidFormat)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode backup document: %w: %w", core.ErrInvalidFormat, err)
	}
	return doc, nil
}

// JSONFilename is the download name of a structured export.
func JSONFilename(now time.Time) string {
	return jsonPrefix + now.Format(core.DateLayout) + ".json"
}

// RawFilename is the download name of a raw database copy.
func RawFilename(now time.Time) string {
	return rawPrefix + now.Format(core.DateLayout) + ".db"
}

// importDate reads a stored or imported date, falling back to today.
func importDate(s string, today core.Date) core.Date {
	s = strings.TrimSpace(s)
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return today
	}
	return d
}

func feedRow(f core.FeedItem) FeedRow {
	return FeedRow{ID: f.ID, Nama: f.Name, Harga: Number(f.UnitPrice), AssetID: f.AssetID}
}

func expenseRow(e core.Expense) ExpenseRow {
	return ExpenseRow{ID: e.ID, Nama: e.Name, Jumlah: Number(e.Quantity), Harga: Number(e.Amount), Tanggal: e.Date.String(), AssetID: e.AssetID}
}

func stockRow(ev core.StockEvent) StockRow {
	return StockRow{ID: ev.ID, Jumlah: Number(ev.Quantity), Harga: Number(ev.Amount), Tanggal: ev.Date.String(), AssetID: ev.AssetID}
}

func incomeRow(in core.Income) IncomeRow {
	return IncomeRow{ID: in.ID, Jumlah: Number(in.Quantity), Harga: Number(in.UnitPrice), Total: Number(in.Total), Tanggal: in.Date.String(), AssetID: in.AssetID}
}
