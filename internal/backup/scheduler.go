package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	applog "ternak/internal/log"
)

const snapshotStampLayout = "20060102-150405"

// Snapshot names the files one scheduled run wrote.
type Snapshot struct {
	JSONPath string
	DBPath   string
}

// Scheduler writes a JSON document and a raw copy of the database into a
// directory on a cron schedule and keeps only the newest copies.
type Scheduler struct {
	cron     *cron.Cron
	exporter *Exporter
	dir      string
	schedule string
	retain   int
	timeout  time.Duration
	now      func() time.Time
}

// NewScheduler validates the standard 5-field cron expression.
func NewScheduler(exporter *Exporter, dir, schedule string, retain int) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("backup schedule %q: %w", schedule, err)
	}
	if retain < 1 {
		retain = 1
	}
	return &Scheduler{
		cron:     cron.New(),
		exporter: exporter,
		dir:      dir,
		schedule: schedule,
		retain:   retain,
		timeout:  5 * time.Minute,
		now:      time.Now,
	}, nil
}

// Start registers the backup job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if _, err := s.RunOnce(runCtx); err != nil {
			slog.ErrorContext(runCtx, "Scheduled backup failed",
				applog.FieldComponent, applog.ComponentScheduler,
				applog.FieldError, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule backup: %w", err)
	}

	s.cron.Start()
	slog.InfoContext(ctx, "Backup scheduler started",
		applog.FieldComponent, applog.ComponentScheduler,
		"schedule", s.schedule,
		"dir", s.dir,
		"retain", s.retain)
	return nil
}

// Stop stops the cron loop and waits for a running backup, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce writes one JSON document covering every asset plus a raw database
// copy, then prunes old files.
func (s *Scheduler) RunOnce(ctx context.Context) (Snapshot, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Snapshot{}, fmt.Errorf("create backup dir: %w", err)
	}

	now := s.now()
	stamp := now.Format(snapshotStampLayout)
	snap := Snapshot{
		JSONPath: filepath.Join(s.dir, jsonPrefix+stamp+".json"),
		DBPath:   filepath.Join(s.dir, rawPrefix+stamp+".db"),
	}

	if err := s.writeJSON(ctx, snap.JSONPath, now); err != nil {
		return snap, err
	}
	// VACUUM INTO refuses to overwrite.
	if err := os.Remove(snap.DBPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return snap, fmt.Errorf("replace raw backup: %w", err)
	}
	if err := s.exporter.SnapshotTo(ctx, snap.DBPath); err != nil {
		return snap, fmt.Errorf("write raw backup: %w", err)
	}

	pruneErr := errors.Join(
		prune(s.dir, jsonPrefix, ".json", s.retain),
		prune(s.dir, rawPrefix, ".db", s.retain),
	)
	if pruneErr != nil {
		slog.WarnContext(ctx, "Pruning old backups failed", applog.FieldError, pruneErr)
	}

	slog.InfoContext(ctx, "Backup written",
		applog.FieldComponent, applog.ComponentScheduler,
		"json", snap.JSONPath,
		"db", snap.DBPath)
	return snap, nil
}

func (s *Scheduler) writeJSON(ctx context.Context, path string, now time.Time) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("write json backup: %w", err)
	}

	err = s.exporter.WriteJSON(ctx, f, Selection{All: true}, now)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write json backup: %w", err)
	}
	return os.Rename(tmp, path)
}

// prune keeps the newest retain files named prefix*suffix. Timestamps in the
// names sort lexically.
func prune(dir, prefix, suffix string, retain int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			names = append(names, name)
		}
	}
	if len(names) <= retain {
		return nil
	}

	sort.Strings(names)
	var errs []error
	for _, name := range names[:len(names)-retain] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
