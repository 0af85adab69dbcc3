package worker

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ternak/internal/amqp"
	"ternak/internal/backup"
	"ternak/internal/core"
	"ternak/internal/sheets/memory"
	"ternak/internal/storage"
)

func newTestSource(t *testing.T) (*storage.SQLiteRepository, *backup.Exporter) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ternak.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	require.NoError(t, repo.Tx(ctx, func(q *storage.Queries) error {
		if err := q.CreateAssetWithID(ctx, 2, "Kandang B"); err != nil {
			return err
		}
		_, err := q.CreateFeedItem(ctx, core.FeedItem{Name: "Jagung", UnitPrice: 6000, AssetID: 2})
		return err
	}))
	return repo, backup.NewExporter(repo)
}

type failingMirror struct{ calls int }

func (f *failingMirror) ReplaceAsset(context.Context, core.AssetSheet) error {
	f.calls++
	return errors.New("quota exceeded")
}

func TestHandleLedgerEventRewritesAsset(t *testing.T) {
	_, exporter := newTestSource(t)
	mirror := memory.New()
	w := NewSyncWorker(exporter, mirror, time.Minute)

	ev := amqp.NewLedgerEvent(amqp.KindFeedItem, amqp.ActionCreated, 2, 1)
	require.NoError(t, w.HandleLedgerEvent(context.Background(), ev))

	sheet, ok := mirror.Sheet(2)
	require.True(t, ok)
	assert.Equal(t, "Kandang B", sheet.Asset.Name)
	require.Len(t, sheet.FeedItems, 1)
	assert.Equal(t, "Jagung", sheet.FeedItems[0].Name)

	_, ok = mirror.Sheet(1)
	assert.False(t, ok, "only the affected asset is written")
}

func TestHandleLedgerEventRestoredSyncsEverything(t *testing.T) {
	_, exporter := newTestSource(t)
	mirror := memory.New()
	w := NewSyncWorker(exporter, mirror, time.Minute)

	require.NoError(t, w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEvent(amqp.KindAsset, amqp.ActionRestored, 1, 1)))
	assert.Equal(t, 2, mirror.Writes())
}

func TestHandleLedgerEventForMissingAsset(t *testing.T) {
	_, exporter := newTestSource(t)
	mirror := memory.New()
	w := NewSyncWorker(exporter, mirror, time.Minute)

	tests := []*amqp.LedgerEvent{
		amqp.NewLedgerEvent(amqp.KindAsset, amqp.ActionDeleted, 9, 9),
		amqp.NewLedgerEvent(amqp.KindExpense, amqp.ActionCreated, 9, 3),
	}
	for _, ev := range tests {
		t.Run(ev.Kind+":"+ev.Action, func(t *testing.T) {
			assert.NoError(t, w.HandleLedgerEvent(context.Background(), ev))
		})
	}
	assert.Zero(t, mirror.Writes())
}

func TestRestoredEventReadsSwappedFile(t *testing.T) {
	repo, exporter := newTestSource(t)
	ctx := context.Background()

	// The server process holds its own handle on the same file.
	server, err := storage.NewSQLiteRepository(repo.Path())
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	empty, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = empty.Close() })
	var raw bytes.Buffer
	_, err = backup.NewExporter(empty).ExportRaw(ctx, &raw)
	require.NoError(t, err)

	_, err = backup.NewImporter(server, nil).ImportRaw(ctx, "ternak_backup.db", &raw)
	require.NoError(t, err)

	mirror := memory.New()
	w := NewSyncWorker(exporter, mirror, time.Minute).WithReloader(repo)
	require.NoError(t, w.HandleLedgerEvent(ctx, amqp.NewLedgerEvent(amqp.KindAsset, amqp.ActionRestored, 1, 1)))

	assert.Equal(t, 1, mirror.Writes(), "only the default asset exists after the restore")
	_, ok := mirror.Sheet(2)
	assert.False(t, ok)
}

type failingReloader struct{}

func (failingReloader) Reload(context.Context) error { return errors.New("file locked") }

func TestRestoredEventReloadFailure(t *testing.T) {
	_, exporter := newTestSource(t)
	mirror := memory.New()
	w := NewSyncWorker(exporter, mirror, time.Minute).WithReloader(failingReloader{})

	err := w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEvent(amqp.KindAsset, amqp.ActionRestored, 1, 1))
	require.Error(t, err)
	assert.Zero(t, mirror.Writes(), "a stale handle must not reach the mirror")
}

func TestRepeatedEventsSkipUnchangedAsset(t *testing.T) {
	repo, exporter := newTestSource(t)
	mirror := memory.New()
	w := NewSyncWorker(exporter, mirror, time.Minute)
	ctx := context.Background()

	ev := amqp.NewLedgerEvent(amqp.KindFeedItem, amqp.ActionUpdated, 2, 1)
	require.NoError(t, w.HandleLedgerEvent(ctx, ev))
	require.NoError(t, w.HandleLedgerEvent(ctx, ev))
	assert.Equal(t, 1, mirror.Writes())

	require.NoError(t, repo.Tx(ctx, func(q *storage.Queries) error {
		_, err := q.CreateFeedItem(ctx, core.FeedItem{Name: "Dedak", UnitPrice: 3000, AssetID: 2})
		return err
	}))
	require.NoError(t, w.HandleLedgerEvent(ctx, ev))
	assert.Equal(t, 2, mirror.Writes())

	_, err := w.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, mirror.Writes(), "the full pass always writes")
}

func TestHandleLedgerEventMirrorFailure(t *testing.T) {
	_, exporter := newTestSource(t)
	w := NewSyncWorker(exporter, &failingMirror{}, time.Minute)

	err := w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEvent(amqp.KindIncome, amqp.ActionCreated, 1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	_, exporter := newTestSource(t)
	mirror := &failingMirror{}
	w := NewSyncWorker(exporter, mirror, time.Minute)

	synced, err := w.SyncAll(context.Background())
	require.Error(t, err)
	assert.Zero(t, synced)
	assert.Equal(t, 2, mirror.calls)
}

type blockingMirror struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (m *blockingMirror) ReplaceAsset(context.Context, core.AssetSheet) error {
	m.once.Do(func() { close(m.entered) })
	<-m.release
	return nil
}

func TestStopAfterTimeoutCanBeRepeated(t *testing.T) {
	_, exporter := newTestSource(t)
	mirror := &blockingMirror{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewSyncWorker(exporter, mirror, time.Hour)

	require.NoError(t, w.Start(context.Background()))
	<-mirror.entered

	stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Stop(stopCtx), context.DeadlineExceeded)
	assert.False(t, w.IsRunning())

	assert.NotPanics(t, func() { assert.NoError(t, w.Stop(context.Background())) })
	close(mirror.release)
}

func TestSyncWorkerLifecycle(t *testing.T) {
	_, exporter := newTestSource(t)
	mirror := memory.New()
	w := NewSyncWorker(exporter, mirror, time.Hour)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(ctx), "second start must fail")

	require.Eventually(t, func() bool { return mirror.Writes() == 2 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.IsRunning())
	assert.NoError(t, w.Stop(stopCtx))
}
