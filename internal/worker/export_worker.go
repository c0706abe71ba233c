package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"saldi/internal/core"
	"saldi/internal/events"
	"saldi/internal/log"
	"saldi/internal/sheets"
)

const (
	defaultBatchSize  = 200
	exportConcurrency = 2
)

// Source is the read side the worker exports from.
type Source interface {
	GetAccount(ctx context.Context, id string) (core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	ListSnapshots(ctx context.Context, accountID string, from, to core.Date) ([]core.Snapshot, error)
}

// ExportWorker mirrors ledger snapshots into a spreadsheet. Balance-change
// events trigger an export from the anchor date onward; a periodic full
// export covers lost messages.
type ExportWorker struct {
	source    Source
	exporter  sheets.SnapshotExporter
	batchSize int
}

func NewExportWorker(source Source, exporter sheets.SnapshotExporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &ExportWorker{source: source, exporter: exporter, batchSize: batchSize}
}

// HandleBalanceChanged exports every snapshot of msg's account dated on or
// after the anchor. Events for deleted accounts are dropped.
func (w *ExportWorker) HandleBalanceChanged(ctx context.Context, msg *events.BalanceChanged) error {
	slog.InfoContext(ctx, "Processing balance change",
		log.FieldComponent, log.ComponentWorker,
		log.FieldEventID, msg.EventID,
		log.FieldAccountID, msg.AccountID,
		log.FieldAnchorDate, msg.AnchorDate.String(),
		"operation", string(msg.Operation))

	account, err := w.source.GetAccount(ctx, msg.AccountID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Account no longer exists, skipping export",
			log.FieldComponent, log.ComponentWorker,
			log.FieldAccountID, msg.AccountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	from := msg.AnchorDate
	if from.IsZero() {
		from = core.MinDate
	}
	return w.exportAccount(ctx, account, from)
}

// ExportAll re-exports the full chain of every account.
func (w *ExportWorker) ExportAll(ctx context.Context) error {
	accounts, err := w.source.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)
	for _, a := range accounts {
		g.Go(func() error {
			return w.exportAccount(ctx, a, core.MinDate)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Full export completed",
		log.FieldComponent, log.ComponentWorker,
		"accounts", len(accounts))
	return nil
}

// Run calls ExportAll every interval until ctx is done. Failed rounds are
// logged and retried on the next tick.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ExportAll(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic export failed",
					log.FieldComponent, log.ComponentWorker,
					log.FieldError, err)
			}
		}
	}
}

func (w *ExportWorker) exportAccount(ctx context.Context, account core.Account, from core.Date) error {
	snapshots, err := w.source.ListSnapshots(ctx, account.ID, from, core.MaxDate)
	if err != nil {
		return fmt.Errorf("list snapshots for %s: %w", account.ID, err)
	}

	for start := 0; start < len(snapshots); start += w.batchSize {
		end := min(start+w.batchSize, len(snapshots))
		ref, err := w.exporter.ExportSnapshots(ctx, account, snapshots[start:end])
		if err != nil {
			return fmt.Errorf("export snapshots for %s: %w", account.ID, err)
		}
		slog.DebugContext(ctx, "Exported batch",
			log.FieldComponent, log.ComponentWorker,
			log.FieldAccountID, account.ID,
			log.FieldSheetsRef, ref,
			"rows", end-start)
	}
	return nil
}
