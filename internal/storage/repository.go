package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"hydra/internal/core"

	_ "modernc.org/sqlite"
)

// DayRow is one grouped day of intake with its entry count, as read from the
// event log.
type DayRow struct {
	Date         string
	TotalML      int
	EntriesCount int
}

// SQLiteRepository owns the intake event log and the settings record. A
// single mutex serializes every operation: each call acquires, does one unit
// of work, and releases. The lock is never held across logical operations.
type SQLiteRepository struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the store is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.PingContext(ctx)
}

// AddEntry persists a stamped entry and returns it with its assigned ID.
func (r *SQLiteRepository) AddEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO water_entries (amount_ml, timestamp, date) VALUES (?, ?, ?)`,
		e.AmountML, e.Timestamp, e.Date)
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Entry{}, fmt.Errorf("entry id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Entry saved",
		"id", e.ID,
		"amount_ml", e.AmountML,
		"date", e.Date)

	return e, nil
}

// DeleteEntry removes one entry by ID. Deleting a missing ID is not an error.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM water_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry deleted", "id", id)
	return nil
}

// GetEntry retrieves a single entry by ID.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var e core.Entry
	err := r.db.QueryRowContext(ctx,
		`SELECT id, amount_ml, timestamp, date FROM water_entries WHERE id = ?`, id).
		Scan(&e.ID, &e.AmountML, &e.Timestamp, &e.Date)
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}

// EntriesByDate returns all entries for one date, most recent first.
func (r *SQLiteRepository) EntriesByDate(ctx context.Context, date string) ([]core.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount_ml, timestamp, date FROM water_entries
		 WHERE date = ? ORDER BY timestamp DESC`, date)
	if err != nil {
		return nil, fmt.Errorf("query entries by date: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var e core.Entry
		if err := rows.Scan(&e.ID, &e.AmountML, &e.Timestamp, &e.Date); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// RecentEntries returns the newest entries up to limit, used by the sync
// worker's startup catch-up pass.
func (r *SQLiteRepository) RecentEntries(ctx context.Context, limit int) ([]core.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount_ml, timestamp, date FROM water_entries
		 ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var e core.Entry
		if err := rows.Scan(&e.ID, &e.AmountML, &e.Timestamp, &e.Date); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// DayTotal returns the summed volume and entry count for exactly one date.
// A date with no entries yields (0, 0), not an error.
func (r *SQLiteRepository) DayTotal(ctx context.Context, date string) (totalML, entriesCount int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_ml), 0), COUNT(*) FROM water_entries WHERE date = ?`, date).
		Scan(&totalML, &entriesCount)
	if err != nil {
		return 0, 0, fmt.Errorf("day total for %s: %w", date, err)
	}
	return totalML, entriesCount, nil
}

// MonthDays returns one grouped row per distinct date in a month, ascending.
// Filtering is a prefix match on the canonical zero-padded date string, so
// lexicographic order is calendar order.
func (r *SQLiteRepository) MonthDays(ctx context.Context, year, month int) ([]DayRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := core.MonthPrefix(year, month)
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, SUM(amount_ml), COUNT(*) FROM water_entries
		 WHERE date LIKE ? || '%' GROUP BY date ORDER BY date`, prefix)
	if err != nil {
		return nil, fmt.Errorf("query month days for %s: %w", prefix, err)
	}
	defer rows.Close()

	var days []DayRow
	for rows.Next() {
		var d DayRow
		if err := rows.Scan(&d.Date, &d.TotalML, &d.EntriesCount); err != nil {
			return nil, fmt.Errorf("scan day row: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day rows: %w", err)
	}

	return days, nil
}

// DayTotalsDesc returns the full grouped history, most recent date first.
// This feeds the streak scan, which is independent of any month filter.
func (r *SQLiteRepository) DayTotalsDesc(ctx context.Context) ([]core.DayTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT date, SUM(amount_ml) FROM water_entries
		 GROUP BY date ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query day totals: %w", err)
	}
	defer rows.Close()

	var totals []core.DayTotal
	for rows.Next() {
		var dt core.DayTotal
		if err := rows.Scan(&dt.Date, &dt.TotalML); err != nil {
			return nil, fmt.Errorf("scan day total: %w", err)
		}
		totals = append(totals, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day totals: %w", err)
	}

	return totals, nil
}

// DailyGoal reads the active goal. If the settings row cannot be read the
// hardcoded default is substituted so aggregation never fails on a missing
// goal.
func (r *SQLiteRepository) DailyGoal(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var goal int
	err := r.db.QueryRowContext(ctx,
		`SELECT daily_goal_ml FROM settings WHERE id = 1`).Scan(&goal)
	if err != nil {
		slog.WarnContext(ctx, "Goal read failed, using default",
			"error", err, "goal_ml", core.DefaultDailyGoalML)
		return core.DefaultDailyGoalML
	}
	return goal
}

// GetSettings reads the singleton settings record.
func (r *SQLiteRepository) GetSettings(ctx context.Context) (core.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s core.Settings
	var reminderEnabled, soundEnabled, autostart int
	err := r.db.QueryRowContext(ctx,
		`SELECT daily_goal_ml, reminder_interval_minutes, reminder_enabled,
		        sound_enabled, start_with_system, theme FROM settings WHERE id = 1`).
		Scan(&s.DailyGoalML, &s.ReminderIntervalMinutes, &reminderEnabled,
			&soundEnabled, &autostart, &s.Theme)
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	s.ReminderEnabled = reminderEnabled != 0
	s.SoundEnabled = soundEnabled != 0
	s.StartWithSystem = autostart != 0
	return s, nil
}

// SaveSettings updates the singleton settings record in place.
func (r *SQLiteRepository) SaveSettings(ctx context.Context, s core.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`UPDATE settings SET
		    daily_goal_ml = ?,
		    reminder_interval_minutes = ?,
		    reminder_enabled = ?,
		    sound_enabled = ?,
		    start_with_system = ?,
		    theme = ?
		 WHERE id = 1`,
		s.DailyGoalML, s.ReminderIntervalMinutes,
		boolToInt(s.ReminderEnabled), boolToInt(s.SoundEnabled),
		boolToInt(s.StartWithSystem), s.Theme)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	slog.InfoContext(ctx, "Settings saved",
		"goal_ml", s.DailyGoalML,
		"reminder_interval_minutes", s.ReminderIntervalMinutes,
		"reminder_enabled", s.ReminderEnabled)

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
