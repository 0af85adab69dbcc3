package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ternak/internal/amqp"
	"ternak/internal/core"
	applog "ternak/internal/log"
	"ternak/internal/storage"
)

// Mode selects how imported rows meet existing ones.
type Mode string

const (
	ModeMerge   Mode = "merge"
	ModeReplace Mode = "replace"
)

// sqliteHeader opens every SQLite 3 database file.
var sqliteHeader = []byte("SQLite format 3\x00")

// ParseMode defaults to merge.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("import mode %q: %w", s, core.ErrInvalidFormat)
	}
}

// Publisher receives a notification for every imported asset.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// EntryResult reports what happened to one asset entry.
type EntryResult struct {
	AssetID  int64
	Name     string
	Created  bool
	Removed  int64
	Inserted storage.LedgerCounts
	Err      error
}

// ImportResult summarizes one import run.
type ImportResult struct {
	BatchID string
	Mode    Mode
	Entries []EntryResult
}

// Inserted is the number of rows written across all entries.
func (r ImportResult) Inserted() int64 {
	var n int64
	for _, e := range r.Entries {
		n += e.Inserted.Total()
	}
	return n
}

func (r ImportResult) Failed() int {
	var n int
	for _, e := range r.Entries {
		if e.Err != nil {
			n++
		}
	}
	return n
}

// RestoreResult reports a raw database restore.
type RestoreResult struct {
	BackupPath string
	Bytes      int64
}

// Importer writes documents and raw files back into the store.
type Importer struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
	now       func() time.Time
}

// NewImporter wires the importer. publisher may be nil.
func NewImporter(storage *storage.SQLiteRepository, publisher Publisher) *Importer {
	return &Importer{storage: storage, publisher: publisher, now: time.Now}
}

// WithClock replaces the time source for defaulted dates and backup names.
func (im *Importer) WithClock(now func() time.Time) *Importer {
	im.now = now
	return im
}

// Import decodes the whole document, then applies each asset entry in its
// own transaction. A failing entry is rolled back and reported; the others
// still apply.
func (im *Importer) Import(ctx context.Context, r io.Reader, mode Mode) (ImportResult, error) {
	result := ImportResult{BatchID: uuid.NewString(), Mode: mode}
	if mode != ModeMerge && mode != ModeReplace {
		return result, fmt.Errorf("import mode %q: %w", mode, core.ErrInvalidFormat)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return result, fmt.Errorf("read backup document: %w", err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return result, err
	}

	today := core.Today(im.now())
	var errs []error
	for i, entry := range doc.Assets {
		res := im.importEntry(ctx, entry, mode, today)
		result.Entries = append(result.Entries, res)

		if res.Err != nil {
			errs = append(errs, fmt.Errorf("asset entry %d: %w", i, res.Err))
			slog.ErrorContext(ctx, "Asset import failed",
				applog.FieldBatchID, result.BatchID,
				applog.FieldImportMode, string(mode),
				applog.FieldError, res.Err)
			continue
		}

		slog.InfoContext(ctx, "Asset imported",
			applog.FieldBatchID, result.BatchID,
			applog.FieldImportMode, string(mode),
			applog.FieldAssetID, res.AssetID,
			"created", res.Created,
			"removed", res.Removed,
			"inserted", res.Inserted.Total())
		im.publish(ctx, amqp.ActionImported, res.AssetID, result.BatchID)
	}

	if len(errs) > 0 {
		return result, fmt.Errorf("import: %d of %d assets failed: %w", len(errs), len(doc.Assets), errors.Join(errs...))
	}
	return result, nil
}

func (im *Importer) importEntry(ctx context.Context, entry AssetEntry, mode Mode, today core.Date) EntryResult {
	res := EntryResult{Name: strings.TrimSpace(entry.Asset.Name)}

	res.Err = im.storage.Tx(ctx, func(q *storage.Queries) error {
		assetID, created, err := resolveAsset(ctx, q, entry.Asset)
		if err != nil {
			return err
		}
		res.AssetID, res.Created = assetID, created

		if mode == ModeReplace {
			removed, err := q.DeleteLedgers(ctx, assetID)
			if err != nil {
				return err
			}
			res.Removed = removed.Total()
		}

		res.Inserted, err = insertLedgers(ctx, q, assetID, entry.Data, today)
		return err
	})
	return res
}

// resolveAsset finds or creates the asset an entry targets. Existing assets
// keep their name.
func resolveAsset(ctx context.Context, q *storage.Queries, ref AssetRef) (int64, bool, error) {
	name := strings.TrimSpace(ref.Name)

	if ref.ID == nil {
		id, err := q.CreateAsset(ctx, name)
		if err != nil {
			return 0, false, err
		}
		if name == "" {
			if err := q.RenameAsset(ctx, id, core.DefaultAssetName(id)); err != nil {
				return 0, false, err
			}
		}
		return id, true, nil
	}

	id := *ref.ID
	if id < 1 {
		return 0, false, fmt.Errorf("asset id %d: %w", id, core.ErrInvalidFormat)
	}
	_, err := q.GetAsset(ctx, id)
	switch {
	case err == nil:
		return id, false, nil
	case errors.Is(err, core.ErrNotFound):
		if name == "" {
			name = core.DefaultAssetName(id)
		}
		if err := q.CreateAssetWithID(ctx, id, name); err != nil {
			return 0, false, err
		}
		return id, true, nil
	default:
		return 0, false, err
	}
}

func insertLedgers(ctx context.Context, q *storage.Queries, assetID int64, data LedgerData, today core.Date) (storage.LedgerCounts, error) {
	inserted := make(storage.LedgerCounts, len(storage.LedgerTables))

	for _, r := range data.Kebutuhan {
		if _, err := q.CreateFeedItem(ctx, core.FeedItem{Name: r.Nama, UnitPrice: r.Harga.Int64(), AssetID: assetID}); err != nil {
			return inserted, err
		}
		inserted["kebutuhan"]++
	}
	for _, r := range data.Pengeluaran {
		e := core.Expense{Name: r.Nama, Quantity: r.Jumlah.Int64(), Amount: r.Harga.Int64(), Date: importDate(r.Tanggal, today), AssetID: assetID}
		if _, err := q.CreateExpense(ctx, e); err != nil {
			return inserted, err
		}
		inserted["pengeluaran"]++
	}
	for _, r := range data.Ayam {
		ev := core.StockEvent{Quantity: r.Jumlah.Int64(), Amount: r.Harga.Int64(), Date: importDate(r.Tanggal, today), AssetID: assetID}
		if _, err := q.CreateStockEvent(ctx, ev); err != nil {
			return inserted, err
		}
		inserted["ayam"]++
	}
	for _, r := range data.Pemasukan {
		in := core.Income{Quantity: r.Jumlah.Int64(), UnitPrice: r.Harga.Int64(), Total: r.Total.Int64(), Date: importDate(r.Tanggal, today), AssetID: assetID}
		if _, err := q.CreateIncome(ctx, in); err != nil {
			return inserted, err
		}
		inserted["pemasukan"]++
	}

	return inserted, nil
}

// ImportRaw swaps the live database for an uploaded file. The upload must be
// named *.db and carry the SQLite header; otherwise the live store is not
// touched. The previous file is kept as <name>.bak-<YYYYMMDD-HHMMSS> and the
// handle is reopened on the new file before returning.
func (im *Importer) ImportRaw(ctx context.Context, filename string, r io.Reader) (RestoreResult, error) {
	var result RestoreResult
	if !strings.EqualFold(filepath.Ext(filename), ".db") {
		return result, fmt.Errorf("restore %q: expected a .db file: %w", filename, core.ErrInvalidFormat)
	}

	dbPath := im.storage.Path()
	tmp, err := os.CreateTemp(filepath.Dir(dbPath), ".restore-*.db")
	if err != nil {
		return result, fmt.Errorf("restore: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	header := make([]byte, len(sqliteHeader))
	n, err := io.ReadFull(r, header)
	if err != nil || !bytes.Equal(header[:n], sqliteHeader) {
		tmp.Close()
		return result, fmt.Errorf("restore %q: not a SQLite database: %w", filename, core.ErrInvalidFormat)
	}

	written, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(header), r))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return result, fmt.Errorf("restore: write upload: %w", err)
	}
	result.Bytes = written

	result.BackupPath = dbPath + ".bak-" + im.now().Format("20060102-150405")
	if err := im.storage.Replace(ctx, tmpPath, result.BackupPath); err != nil {
		return result, fmt.Errorf("restore %q: %w", filename, err)
	}

	slog.InfoContext(ctx, "Database restored from upload",
		applog.FieldOperation, applog.OpRestore,
		applog.FieldFile, filename,
		"bytes", written,
		"previous", result.BackupPath)
	im.publish(ctx, amqp.ActionRestored, core.DefaultAssetID, "")
	return result, nil
}

func (im *Importer) publish(ctx context.Context, action string, assetID int64, batchID string) {
	if im.publisher == nil {
		return
	}
	event := amqp.NewLedgerEvent(amqp.KindAsset, action, assetID, assetID)
	event.BatchID = batchID
	if err := im.publisher.PublishLedgerEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "Failed to publish import event",
			applog.FieldAssetID, assetID,
			applog.FieldError, err)
	}
}
