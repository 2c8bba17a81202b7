// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"hydra/internal/amqp"
	"hydra/internal/core"
	"hydra/internal/storage"
)

// EntryStore is the persistence surface the tracker needs. Satisfied by
// storage.SQLiteRepository.
type EntryStore interface {
	AddEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	DeleteEntry(ctx context.Context, id int64) error
	GetEntry(ctx context.Context, id int64) (core.Entry, error)
	EntriesByDate(ctx context.Context, date string) ([]core.Entry, error)
	DayTotal(ctx context.Context, date string) (totalML, entriesCount int, err error)
	MonthDays(ctx context.Context, year, month int) ([]storage.DayRow, error)
	DayTotalsDesc(ctx context.Context) ([]core.DayTotal, error)
	DailyGoal(ctx context.Context) int
	GetSettings(ctx context.Context) (core.Settings, error)
	SaveSettings(ctx context.Context, s core.Settings) error
	Close() error
}

// TrackerService orchestrates intake operations across SQLite and AMQP.
type TrackerService struct {
	storage    EntryStore
	amqpClient *amqp.Client
	now        func() time.Time
}

func NewTrackerService(storage EntryStore, amqpClient *amqp.Client) *TrackerService {
	return &TrackerService{
		storage:    storage,
		amqpClient: amqpClient,
		now:        time.Now,
	}
}

// AddEntry validates the amount, stamps and persists the entry, then publishes
// a sync message. Publishing is best effort: the entry is saved locally either
// way.
func (s *TrackerService) AddEntry(ctx context.Context, amountML int) (core.Entry, error) {
	if err := core.ValidateAmount(amountML); err != nil {
		return core.Entry{}, err
	}

	entry, err := s.storage.AddEntry(ctx, core.NewEntry(amountML, s.now()))
	if err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	if err := s.publishSyncMessage(ctx, entry.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", entry.ID, "error", err)
		// Don't fail the request - entry is saved locally
	}

	return entry, nil
}

// QuickAdd records one of the preset tray amounts. Any other preset is
// rejected.
func (s *TrackerService) QuickAdd(ctx context.Context, preset int) (core.Entry, error) {
	if preset != core.QuickAddSmall && preset != core.QuickAddLarge {
		return core.Entry{}, core.ErrInvalidAmount
	}
	return s.AddEntry(ctx, preset)
}

// RemoveEntry deletes an entry locally and publishes a delete message carrying
// the entry's data, since the row is gone by the time the worker sees it.
func (s *TrackerService) RemoveEntry(ctx context.Context, id int64) error {
	entry, err := s.storage.GetEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("load entry: %w", err)
	}

	if err := s.storage.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	if err := s.publishDeleteMessage(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"id", id, "error", err)
		// Don't fail the request - entry is deleted locally
	}

	return nil
}

// TodayStats returns the rollup for the current calendar date. A day with no
// entries yields a zero total, never an error.
func (s *TrackerService) TodayStats(ctx context.Context) (core.DailyStats, error) {
	date := s.now().Format(core.DateLayout)
	totalML, count, err := s.storage.DayTotal(ctx, date)
	if err != nil {
		return core.DailyStats{}, fmt.Errorf("day total: %w", err)
	}
	return core.NewDailyStats(date, totalML, count, s.storage.DailyGoal(ctx)), nil
}

// TodayEntries lists the current date's entries, most recent first.
func (s *TrackerService) TodayEntries(ctx context.Context) ([]core.Entry, error) {
	return s.storage.EntriesByDate(ctx, s.now().Format(core.DateLayout))
}

// MonthlyStats aggregates one month. Streaks are computed over the full
// history, not just the requested month.
func (s *TrackerService) MonthlyStats(ctx context.Context, year, month int) (core.MonthlyStats, error) {
	if err := core.ValidateMonth(month); err != nil {
		return core.MonthlyStats{}, err
	}

	rows, err := s.storage.MonthDays(ctx, year, month)
	if err != nil {
		return core.MonthlyStats{}, fmt.Errorf("month days: %w", err)
	}

	goal := s.storage.DailyGoal(ctx)
	days := make([]core.DailyStats, 0, len(rows))
	for _, row := range rows {
		days = append(days, core.NewDailyStats(row.Date, row.TotalML, row.EntriesCount, goal))
	}

	stats := core.MonthlyFromDays(core.MonthName(month), year, days, goal)
	stats.CurrentStreak, stats.BestStreak = s.streaks(ctx, goal)
	return stats, nil
}

// YearlyOverview aggregates twelve months concurrently. A month whose
// aggregation fails is logged and omitted rather than failing the year, and
// streaks are left at zero since they are a property of the full history, not
// of a month.
func (s *TrackerService) YearlyOverview(ctx context.Context, year int) ([]core.MonthlyStats, error) {
	goal := s.storage.DailyGoal(ctx)

	var (
		g      errgroup.Group
		months [12]*core.MonthlyStats
	)
	for month := 1; month <= 12; month++ {
		g.Go(func() error {
			rows, err := s.storage.MonthDays(ctx, year, month)
			if err != nil {
				slog.WarnContext(ctx, "Skipping month in yearly overview",
					"year", year, "month", month, "error", err)
				return nil
			}

			days := make([]core.DailyStats, 0, len(rows))
			for _, row := range rows {
				days = append(days, core.NewDailyStats(row.Date, row.TotalML, row.EntriesCount, goal))
			}

			stats := core.MonthlyFromDays(core.MonthAbbrev(month), year, days, goal)
			months[month-1] = &stats
			return nil
		})
	}
	// Workers only record warnings, never errors.
	_ = g.Wait()

	result := make([]core.MonthlyStats, 0, 12)
	for _, m := range months {
		if m != nil {
			result = append(result, *m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return monthIndex(result[i].Month) < monthIndex(result[j].Month)
	})
	return result, nil
}

// Streaks scans the full day-total history and returns the current and best
// goal streaks. An unreadable history degrades to (0, 0) so a stats view
// still renders; the failure is logged, not surfaced.
func (s *TrackerService) Streaks(ctx context.Context) (current, best int) {
	return s.streaks(ctx, s.storage.DailyGoal(ctx))
}

// streaks takes the goal as a parameter so a monthly aggregation measures its
// day list and its streaks against the same goal read.
func (s *TrackerService) streaks(ctx context.Context, goalML int) (current, best int) {
	rows, err := s.storage.DayTotalsDesc(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load day totals for streaks, using zeros",
			"error", err)
		return 0, 0
	}
	return core.CalculateStreaks(rows, s.now(), goalML)
}

func (s *TrackerService) GetSettings(ctx context.Context) (core.Settings, error) {
	return s.storage.GetSettings(ctx)
}

// SaveSettings validates and persists the preferences record.
func (s *TrackerService) SaveSettings(ctx context.Context, settings core.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.storage.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *TrackerService) publishSyncMessage(ctx context.Context, id int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}

	return s.amqpClient.PublishEntrySync(ctx, id)
}

func (s *TrackerService) publishDeleteMessage(ctx context.Context, e core.Entry) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping delete message")
		return nil
	}

	return s.amqpClient.PublishEntryDelete(ctx, e.ID, e.AmountML, e.Date)
}

// Close closes both storage and AMQP connections.
func (s *TrackerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close tracker service: %v", errs)
	}

	return nil
}

// monthIndex maps a three-letter month label back to its 1-12 position for
// ordering the yearly overview.
func monthIndex(label string) int {
	for m := 1; m <= 12; m++ {
		if core.MonthAbbrev(m) == label {
			return m
		}
	}
	return 13
}
