package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"hydra/internal/amqp"
	"hydra/internal/core"
)

// ReminderStore is the slice of the store the scheduler reads from.
type ReminderStore interface {
	GetSettings(ctx context.Context) (core.Settings, error)
	DayTotal(ctx context.Context, date string) (totalML, entriesCount int, err error)
}

// ReminderPublisher sends the outbound nudge. Satisfied by amqp.Client.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
}

// ReminderScheduler fires hydration nudges at the interval configured in
// settings. Settings are re-read periodically so interval or enabled changes
// take effect without a restart.
type ReminderScheduler struct {
	storage   ReminderStore
	publisher ReminderPublisher
	refresh   time.Duration
	now       func() time.Time

	mu       sync.Mutex
	cron     *rcron.Cron
	entryID  rcron.EntryID
	interval int
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewReminderScheduler(storage ReminderStore, publisher ReminderPublisher, refresh time.Duration) *ReminderScheduler {
	return &ReminderScheduler{
		storage:   storage,
		publisher: publisher,
		refresh:   refresh,
		now:       time.Now,
	}
}

// Start schedules the reminder job and begins watching settings for interval
// changes. It returns once the scheduler is running.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	settings, err := s.storage.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	s.cron = rcron.New()
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.reschedule(settings.ReminderIntervalMinutes); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("Reminder scheduler started",
		"interval_minutes", settings.ReminderIntervalMinutes,
		"enabled", settings.ReminderEnabled)

	go s.watchSettings(ctx)
	return nil
}

// reschedule replaces the cron entry with one at the given interval.
func (s *ReminderScheduler) reschedule(intervalMinutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	id, err := s.cron.AddFunc(fmt.Sprintf("@every %dm", intervalMinutes), s.fire)
	if err != nil {
		return fmt.Errorf("schedule reminder job: %w", err)
	}
	s.entryID = id
	s.interval = intervalMinutes
	return nil
}

// watchSettings re-reads settings and reschedules when the interval changes.
func (s *ReminderScheduler) watchSettings(ctx context.Context) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			settings, err := s.storage.GetSettings(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to refresh settings", "error", err)
				continue
			}
			s.mu.Lock()
			current := s.interval
			s.mu.Unlock()
			if settings.ReminderIntervalMinutes != current {
				slog.InfoContext(ctx, "Reminder interval changed",
					"from_minutes", current, "to_minutes", settings.ReminderIntervalMinutes)
				if err := s.reschedule(settings.ReminderIntervalMinutes); err != nil {
					slog.ErrorContext(ctx, "Failed to reschedule reminder", "error", err)
				}
			}
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.stopCh:
			return
		}
	}
}

// fire checks today's progress and publishes a nudge when reminders are
// enabled and the goal has not been reached yet.
func (s *ReminderScheduler) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Check(ctx); err != nil {
		slog.ErrorContext(ctx, "Reminder check failed", "error", err)
	}
}

// Check runs one reminder evaluation. Split from the cron callback so it can
// be driven directly.
func (s *ReminderScheduler) Check(ctx context.Context) error {
	settings, err := s.storage.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !settings.ReminderEnabled {
		slog.DebugContext(ctx, "Reminders disabled, skipping")
		return nil
	}

	date := s.now().Format(core.DateLayout)
	totalML, _, err := s.storage.DayTotal(ctx, date)
	if err != nil {
		return fmt.Errorf("day total: %w", err)
	}
	if totalML >= settings.DailyGoalML {
		slog.DebugContext(ctx, "Daily goal reached, skipping reminder",
			"total_ml", totalML, "goal_ml", settings.DailyGoalML)
		return nil
	}

	msg := &amqp.ReminderMessage{
		GoalML:     settings.DailyGoalML,
		TotalML:    totalML,
		Percentage: core.Percentage(totalML, settings.DailyGoalML),
		Sound:      settings.SoundEnabled,
		Timestamp:  s.now(),
	}
	if err := s.publisher.PublishReminder(ctx, msg); err != nil {
		return fmt.Errorf("publish reminder: %w", err)
	}

	slog.InfoContext(ctx, "Reminder published",
		"total_ml", totalML, "goal_ml", settings.DailyGoalML)
	return nil
}

// Stop halts the cron runner and the settings watcher.
func (s *ReminderScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		c := s.cron
		stopCh := s.stopCh
		s.mu.Unlock()

		if stopCh != nil {
			close(stopCh)
		}
		if c != nil {
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
			case <-time.After(5 * time.Second):
				slog.Warn("Timeout waiting for running reminder job")
			}
		}
	})
}
