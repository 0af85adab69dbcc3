package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ternak/internal/core"
	applog "ternak/internal/log"
	"ternak/internal/storage"
)

// Selection names the assets to export. All wins over IDs.
type Selection struct {
	All bool
	IDs []int64
}

// ParseSelection accepts "all", a single id or a comma-separated id list.
// An empty string selects every asset.
func ParseSelection(s string) (Selection, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return Selection{All: true}, nil
	}

	var sel Selection
	seen := make(map[int64]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id < 1 {
			return Selection{}, fmt.Errorf("asset selection %q: %w", s, core.ErrInvalidFormat)
		}
		if !seen[id] {
			seen[id] = true
			sel.IDs = append(sel.IDs, id)
		}
	}
	if len(sel.IDs) == 0 {
		return Selection{}, fmt.Errorf("asset selection %q: %w", s, core.ErrInvalidFormat)
	}
	return sel, nil
}

func (s Selection) String() string {
	if s.All {
		return "all"
	}
	parts := make([]string, len(s.IDs))
	for i, id := range s.IDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Exporter serializes assets out of the store.
type Exporter struct {
	storage *storage.SQLiteRepository
}

func NewExporter(storage *storage.SQLiteRepository) *Exporter {
	return &Exporter{storage: storage}
}

// Export builds the document for the selected assets. Every ledger is listed
// in insertion order. Unknown ids fail with core.ErrNotFound.
func (e *Exporter) Export(ctx context.Context, sel Selection, now time.Time) (Document, error) {
	doc := Document{ExportDate: now.Format(DocumentDateLayout)}

	err := e.storage.Read(ctx, func(q *storage.Queries) error {
		var assets []core.Asset
		if sel.All {
			var err error
			if assets, err = q.ListAssets(ctx); err != nil {
				return err
			}
		} else {
			for _, id := range sel.IDs {
				a, err := q.GetAsset(ctx, id)
				if err != nil {
					return err
				}
				assets = append(assets, a)
			}
		}

		doc.Assets = make([]AssetEntry, 0, len(assets))
		for _, a := range assets {
			entry, err := exportAsset(ctx, q, a)
			if err != nil {
				return err
			}
			doc.Assets = append(doc.Assets, entry)
		}
		return nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("export assets %s: %w", sel, err)
	}

	return doc, nil
}

func exportAsset(ctx context.Context, q *storage.Queries, a core.Asset) (AssetEntry, error) {
	sheet, err := loadSheet(ctx, q, a)
	if err != nil {
		return AssetEntry{}, err
	}

	id := a.ID
	entry := AssetEntry{
		Asset: AssetRef{ID: &id, Name: a.Name},
		Data: LedgerData{
			Pengeluaran: make([]ExpenseRow, 0, len(sheet.Expenses)),
			Kebutuhan:   make([]FeedRow, 0, len(sheet.FeedItems)),
			Ayam:        make([]StockRow, 0, len(sheet.StockEvents)),
			Pemasukan:   make([]IncomeRow, 0, len(sheet.Incomes)),
		},
	}
	for _, f := range sheet.FeedItems {
		entry.Data.Kebutuhan = append(entry.Data.Kebutuhan, feedRow(f))
	}
	for _, x := range sheet.Expenses {
		entry.Data.Pengeluaran = append(entry.Data.Pengeluaran, expenseRow(x))
	}
	for _, ev := range sheet.StockEvents {
		entry.Data.Ayam = append(entry.Data.Ayam, stockRow(ev))
	}
	for _, in := range sheet.Incomes {
		entry.Data.Pemasukan = append(entry.Data.Pemasukan, incomeRow(in))
	}
	return entry, nil
}

func loadSheet(ctx context.Context, q *storage.Queries, a core.Asset) (core.AssetSheet, error) {
	sheet := core.AssetSheet{Asset: a}
	var err error
	if sheet.FeedItems, err = q.ListFeedItems(ctx, a.ID); err != nil {
		return sheet, err
	}
	if sheet.Expenses, err = q.ListExpenses(ctx, a.ID, false); err != nil {
		return sheet, err
	}
	if sheet.StockEvents, err = q.ListStockEvents(ctx, a.ID, false); err != nil {
		return sheet, err
	}
	if sheet.Incomes, err = q.ListIncomes(ctx, a.ID, false); err != nil {
		return sheet, err
	}
	return sheet, nil
}

// Sheet reads every ledger of one asset.
func (e *Exporter) Sheet(ctx context.Context, assetID int64) (core.AssetSheet, error) {
	var sheet core.AssetSheet
	err := e.storage.Read(ctx, func(q *storage.Queries) error {
		a, err := q.GetAsset(ctx, assetID)
		if err != nil {
			return err
		}
		sheet, err = loadSheet(ctx, q, a)
		return err
	})
	if err != nil {
		return core.AssetSheet{}, fmt.Errorf("read asset %d: %w", assetID, err)
	}
	return sheet, nil
}

// Sheets reads every asset in id order.
func (e *Exporter) Sheets(ctx context.Context) ([]core.AssetSheet, error) {
	var sheets []core.AssetSheet
	err := e.storage.Read(ctx, func(q *storage.Queries) error {
		assets, err := q.ListAssets(ctx)
		if err != nil {
			return err
		}
		for _, a := range assets {
			sheet, err := loadSheet(ctx, q, a)
			if err != nil {
				return err
			}
			sheets = append(sheets, sheet)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read assets: %w", err)
	}
	return sheets, nil
}

// WriteJSON exports the selection and writes it indented to w.
func (e *Exporter) WriteJSON(ctx context.Context, w io.Writer, sel Selection, now time.Time) error {
	doc, err := e.Export(ctx, sel, now)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup document: %w", err)
	}

	slog.InfoContext(ctx, "Exported backup document",
		applog.FieldOperation, applog.OpExport,
		"assets", len(doc.Assets),
		"selection", sel.String())
	return nil
}

// ExportRaw streams a consistent copy of the database file to w.
func (e *Exporter) ExportRaw(ctx context.Context, w io.Writer) (int64, error) {
	dir, err := os.MkdirTemp("", "ternak-export-*")
	if err != nil {
		return 0, fmt.Errorf("export raw: %w", err)
	}
	defer os.RemoveAll(dir)

	snap := filepath.Join(dir, "snapshot.db")
	if err := e.storage.Snapshot(ctx, snap); err != nil {
		return 0, fmt.Errorf("export raw: %w", err)
	}

	f, err := os.Open(snap)
	if err != nil {
		return 0, fmt.Errorf("export raw: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, fmt.Errorf("export raw: %w", err)
	}
	return n, nil
}

// SnapshotTo writes a consistent copy of the database to path.
func (e *Exporter) SnapshotTo(ctx context.Context, path string) error {
	return e.storage.Snapshot(ctx, path)
}
