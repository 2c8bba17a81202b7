// Package worker contains the background consumers: the backup sync worker
// and the reminder scheduler.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"hydra/internal/amqp"
	"hydra/internal/core"
	"hydra/internal/sheets"
)

// EntrySource is the slice of the store the sync worker reads from.
type EntrySource interface {
	GetEntry(ctx context.Context, id int64) (core.Entry, error)
	RecentEntries(ctx context.Context, limit int) ([]core.Entry, error)
}

// SyncWorker mirrors intake entries from SQLite to the backup sheet.
type SyncWorker struct {
	storage   EntrySource
	appender  sheets.EntryAppender
	remover   sheets.EntryRemover
	batchSize int
}

func NewSyncWorker(storage EntrySource, appender sheets.EntryAppender, remover sheets.EntryRemover, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		appender:  appender,
		remover:   remover,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single entry sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID)

	entry, err := w.storage.GetEntry(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	ref, err := w.appender.Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append entry to sheet: %w", err)
	}

	slog.InfoContext(ctx, "Entry backed up",
		"id", msg.ID, "amount_ml", entry.AmountML, "sheet_ref", ref)
	return nil
}

// HandleDeleteMessage processes a single entry delete message from AMQP.
func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.EntryDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "id", msg.ID, "date", msg.Date)

	if w.remover == nil {
		slog.WarnContext(ctx, "No entry remover configured, skipping sheet deletion",
			"id", msg.ID)
		return nil
	}

	if err := w.remover.Remove(ctx, msg.ID); err != nil {
		return fmt.Errorf("remove entry from sheet: %w", err)
	}

	slog.InfoContext(ctx, "Backed-up entry removed", "id", msg.ID)
	return nil
}

// StartupSyncCheck re-appends the most recent entries once at startup,
// covering messages lost while the worker was down. Sheet append is treated
// as idempotent enough for a personal backup; duplicates beat gaps here.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	entries, err := w.storage.RecentEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("load recent entries: %w", err)
	}

	if len(entries) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Running startup sync check", "count", len(entries))

	var failed int
	for _, entry := range entries {
		if _, err := w.appender.Append(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Startup sync failed for entry",
				"id", entry.ID, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("startup sync: %d of %d entries failed", failed, len(entries))
	}
	return nil
}
