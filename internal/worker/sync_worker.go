package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ternak/internal/amqp"
	"ternak/internal/cache"
	"ternak/internal/core"
	applog "ternak/internal/log"
	"ternak/internal/sheets"
)

// AssetSource reads the ledgers of one or every asset.
type AssetSource interface {
	Sheet(ctx context.Context, assetID int64) (core.AssetSheet, error)
	Sheets(ctx context.Context) ([]core.AssetSheet, error)
}

// Reloader reopens the store handle after the database file was swapped.
type Reloader interface {
	Reload(ctx context.Context) error
}

// SyncWorker mirrors assets from SQLite to the spreadsheet. Ledger events
// rewrite the affected asset; a periodic pass rewrites every asset in case
// events were lost.
type SyncWorker struct {
	source   AssetSource
	mirror   sheets.AssetMirror
	interval time.Duration
	reloader Reloader

	// Fingerprint of the last layout written per tab. Event bursts for an
	// unchanged asset skip the remote call.
	written *cache.LRUCache[string]

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(source AssetSource, mirror sheets.AssetMirror, interval time.Duration) *SyncWorker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SyncWorker{
		source:   source,
		mirror:   mirror,
		interval: interval,
		written:  cache.NewLRUCache[string](256, interval),
	}
}

// WithReloader makes a restore event reopen the store before the full pass.
// A worker running in its own process needs it: its handle still points at
// the file the restore renamed away.
func (w *SyncWorker) WithReloader(r Reloader) *SyncWorker {
	w.reloader = r
	return w
}

// HandleLedgerEvent processes one event from AMQP. Returning an error makes
// the consumer requeue the message.
func (w *SyncWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		applog.FieldComponent, applog.ComponentWorker,
		"kind", ev.Kind,
		"action", ev.Action,
		applog.FieldAssetID, ev.AssetID,
		applog.FieldRowID, ev.ID)

	switch {
	case ev.Action == amqp.ActionRestored:
		// The whole file changed under us.
		if w.reloader != nil {
			if err := w.reloader.Reload(ctx); err != nil {
				return fmt.Errorf("reload store: %w", err)
			}
		}
		_, err := w.SyncAll(ctx)
		return err
	case ev.Kind == amqp.KindAsset && ev.Action == amqp.ActionDeleted:
		slog.InfoContext(ctx, "Asset deleted, leaving its tab in place",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldAssetID, ev.AssetID)
		return nil
	}

	return w.SyncAsset(ctx, ev.AssetID)
}

// SyncAsset rewrites one asset's tab. An asset that no longer exists is
// skipped.
func (w *SyncWorker) SyncAsset(ctx context.Context, assetID int64) error {
	sheet, err := w.source.Sheet(ctx, assetID)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Asset no longer exists, skipping sync",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldAssetID, assetID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read asset %d: %w", assetID, err)
	}

	tab := sheets.TabTitle(assetID)
	sum := fingerprint(sheet)
	if last, ok := w.written.Get(tab); ok && sum != "" && last == sum {
		slog.DebugContext(ctx, "Asset unchanged since last write",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldAssetID, assetID)
		return nil
	}

	if err := w.mirror.ReplaceAsset(ctx, sheet); err != nil {
		w.written.Delete(tab)
		return fmt.Errorf("mirror asset %d: %w", assetID, err)
	}
	w.written.Set(tab, sum)
	return nil
}

// SyncAll rewrites every asset's tab and reports how many succeeded. One
// failing asset does not stop the others.
func (w *SyncWorker) SyncAll(ctx context.Context) (int, error) {
	all, err := w.source.Sheets(ctx)
	if err != nil {
		return 0, fmt.Errorf("read assets: %w", err)
	}

	synced := 0
	var errs []error
	for _, sheet := range all {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		tab := sheets.TabTitle(sheet.Asset.ID)
		if err := w.mirror.ReplaceAsset(ctx, sheet); err != nil {
			w.written.Delete(tab)
			errs = append(errs, fmt.Errorf("mirror asset %d: %w", sheet.Asset.ID, err))
			continue
		}
		w.written.Set(tab, fingerprint(sheet))
		synced++
	}

	slog.InfoContext(ctx, "Full sync completed",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldOperation, applog.OpSync,
		"total", len(all),
		"synced", synced,
		"errors", len(errs))
	return synced, errors.Join(errs...)
}

// Start runs SyncAll now and then every interval. Returns an error if already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Sync worker started",
		applog.FieldComponent, applog.ComponentWorker,
		"interval", w.interval)
	return nil
}

// Stop ends the periodic loop and waits for a pass in progress.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync worker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.syncAllLogged(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.written.CleanExpired()
			w.syncAllLogged(ctx)
		}
	}
}

// fingerprint hashes the rows a tab would receive. The full pass writes
// regardless so manual edits on the spreadsheet get overwritten.
func fingerprint(sheet core.AssetSheet) string {
	b, err := json.Marshal(sheets.Layout(sheet))
	if err != nil {
		return ""
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func (w *SyncWorker) syncAllLogged(ctx context.Context) {
	if _, err := w.SyncAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "Periodic sync failed",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldError, err)
	}
}
