package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"boletim/internal/amqp"
	"boletim/internal/core"
	"boletim/internal/provider"
	"boletim/internal/storage"
	"boletim/internal/table"
)

// DayStore is what the worker needs from the database.
type DayStore interface {
	LoadRecord(ctx context.Context, date core.Date) (*core.Record, error)
	GetPendingSyncDays(ctx context.Context, limit int) ([]storage.PendingDay, error)
	MarkSynced(ctx context.Context, date core.Date, version int64) (bool, error)
	MarkSyncError(ctx context.Context, date core.Date) error
	SyncStatus(ctx context.Context, date core.Date) (status string, version int64, ok bool, err error)
}

// SyncWorker exports saved days. Messages drive it; a scheduled sweep
// catches days whose messages were lost or failed.
type SyncWorker struct {
	store     DayStore
	exporter  provider.DayExporter
	batchSize int

	// One export at a time: the sweep and the consumer may pick the same day.
	mu sync.Mutex
}

func NewSyncWorker(store DayStore, exporter provider.DayExporter, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{store: store, exporter: exporter, batchSize: batchSize}
}

// HandleSyncMessage exports the day named by msg. Redelivered messages for
// an exported version and messages superseded by a newer save are skipped;
// the newer save carries its own message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.DaySyncMessage) error {
	slog.InfoContext(ctx, "Processing day sync message",
		"date", msg.Date.String(),
		"version", msg.Version)

	status, version, ok, err := w.store.SyncStatus(ctx, msg.Date)
	if err != nil {
		return fmt.Errorf("sync status %s: %w", msg.Date, err)
	}
	switch {
	case ok && version > msg.Version:
		slog.InfoContext(ctx, "Skipping superseded day sync message",
			"date", msg.Date.String(), "version", msg.Version, "current_version", version)
		return nil
	case ok && version == msg.Version && status == storage.StatusSynced:
		slog.InfoContext(ctx, "Skipping already exported day",
			"date", msg.Date.String(), "version", msg.Version)
		return nil
	}

	return w.syncDay(ctx, msg.Date, msg.Version)
}

// ProcessPendingDays exports up to one batch of pending days and returns
// how many succeeded.
func (w *SyncWorker) ProcessPendingDays(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep to recover from worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", n)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.GetPendingSyncDays(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending days: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending days", "count", len(pending))

	synced := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.syncDay(ctx, p.Date, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to sync day",
				"date", p.Date.String(), "attempts", p.Attempts, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// Schedule registers the pending sweep on a cron spec such as "@every 5m".
// The caller starts and stops the returned scheduler.
func (w *SyncWorker) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := w.ProcessPendingDays(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled sync sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return c, nil
}

func (w *SyncWorker) syncDay(ctx context.Context, date core.Date, version int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	record, err := w.store.LoadRecord(ctx, date)
	if err != nil {
		return fmt.Errorf("load record %s: %w", date, err)
	}

	footer := table.Aggregate(record, table.RowsFromRecord(record))
	ref, err := w.exporter.ExportDay(ctx, record, footer)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, date); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "date", date.String(), "error", markErr)
		}
		return fmt.Errorf("export %s: %w", date, err)
	}

	if _, err := w.store.MarkSynced(ctx, date, version); err != nil {
		// The export happened; a later sweep re-exports at worst.
		slog.ErrorContext(ctx, "Failed to mark day synced", "date", date.String(), "error", err)
	}

	slog.InfoContext(ctx, "Day exported",
		"date", date.String(),
		"version", version,
		"ref", ref)
	return nil
}
