package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"ternak/internal/core"
	applog "ternak/internal/log"
	"ternak/internal/storage"
)

// SeedResult counts rows inserted and skipped per ledger.
type SeedResult struct {
	Inserted storage.LedgerCounts
	Skipped  storage.LedgerCounts
}

// Seed loads a flat single-asset document ({kebutuhan, pengeluaran, ayam,
// pemasukan}) into assetID. A ledger that already holds rows for the asset is
// left alone; rows missing a required column are skipped.
func Seed(ctx context.Context, repo *storage.SQLiteRepository, r io.Reader, assetID int64) (SeedResult, error) {
	result := SeedResult{
		Inserted: make(storage.LedgerCounts),
		Skipped:  make(storage.LedgerCounts),
	}

	var data LedgerData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return result, fmt.Errorf("decode seed file: %w: %w", core.ErrInvalidFormat, err)
	}

	err := repo.Tx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetAsset(ctx, assetID); err != nil {
			return err
		}

		empty := make(map[string]bool, len(storage.LedgerTables))
		for _, table := range storage.LedgerTables {
			n, err := q.CountLedgerRows(ctx, table, assetID)
			if err != nil {
				return err
			}
			empty[table] = n == 0
		}

		if empty["kebutuhan"] {
			for _, row := range data.Kebutuhan {
				if strings.TrimSpace(row.Nama) == "" {
					result.Skipped["kebutuhan"]++
					continue
				}
				if _, err := q.CreateFeedItem(ctx, core.FeedItem{Name: row.Nama, UnitPrice: row.Harga.Int64(), AssetID: assetID}); err != nil {
					return err
				}
				result.Inserted["kebutuhan"]++
			}
		}

		if empty["pengeluaran"] {
			for _, row := range data.Pengeluaran {
				date, ok := seedDate(row.Tanggal)
				if !ok || strings.TrimSpace(row.Nama) == "" {
					result.Skipped["pengeluaran"]++
					continue
				}
				e := core.Expense{Name: row.Nama, Quantity: row.Jumlah.Int64(), Amount: row.Harga.Int64(), Date: date, AssetID: assetID}
				if _, err := q.CreateExpense(ctx, e); err != nil {
					return err
				}
				result.Inserted["pengeluaran"]++
			}
		}

		if empty["ayam"] {
			for _, row := range data.Ayam {
				date, ok := seedDate(row.Tanggal)
				if !ok {
					result.Skipped["ayam"]++
					continue
				}
				ev := core.StockEvent{Quantity: row.Jumlah.Int64(), Amount: row.Harga.Int64(), Date: date, AssetID: assetID}
				if _, err := q.CreateStockEvent(ctx, ev); err != nil {
					return err
				}
				result.Inserted["ayam"]++
			}
		}

		if empty["pemasukan"] {
			for _, row := range data.Pemasukan {
				date, ok := seedDate(row.Tanggal)
				if !ok {
					result.Skipped["pemasukan"]++
					continue
				}
				total := row.Total.Int64()
				if total == 0 {
					var err error
					if total, err = core.MulAmount(row.Jumlah.Int64(), row.Harga.Int64()); err != nil {
						result.Skipped["pemasukan"]++
						continue
					}
				}
				in := core.Income{Quantity: row.Jumlah.Int64(), UnitPrice: row.Harga.Int64(), Total: total, Date: date, AssetID: assetID}
				if _, err := q.CreateIncome(ctx, in); err != nil {
					return err
				}
				result.Inserted["pemasukan"]++
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("seed asset %d: %w", assetID, err)
	}

	slog.InfoContext(ctx, "Seed data loaded",
		applog.FieldOperation, applog.OpSeed,
		applog.FieldAssetID, assetID,
		"inserted", result.Inserted.Total(),
		"skipped", result.Skipped.Total())
	return result, nil
}

// SeedFile runs Seed on the file at path.
func SeedFile(ctx context.Context, repo *storage.SQLiteRepository, path string, assetID int64) (SeedResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Seed(ctx, repo, f, assetID)
}

func seedDate(s string) (core.Date, bool) {
	d := importDate(s, core.Date{})
	return d, !d.IsZero()
}
