package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Canonical textual forms for dates and timestamps. Month filtering relies on
// string-prefix matching, so every writer must use these zero-padded layouts.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Quick-add presets offered by the shell's tray menu.
const (
	QuickAddSmall = 250
	QuickAddLarge = 500
)

// DefaultDailyGoalML is substituted when the goal cannot be read during
// aggregation.
const DefaultDailyGoalML = 4000

type (
	// Entry is one recorded water-intake event. Immutable once created;
	// only whole-event deletion is supported.
	Entry struct {
		ID        int64  `json:"id"`
		AmountML  int    `json:"amount_ml"`
		Timestamp string `json:"timestamp"`
		Date      string `json:"date"`
	}

	// DailyStats is the derived rollup for one calendar date.
	DailyStats struct {
		Date         string  `json:"date"`
		TotalML      int     `json:"total_ml"`
		GoalML       int     `json:"goal_ml"`
		EntriesCount int     `json:"entries_count"`
		Percentage   float64 `json:"percentage"`
	}

	// MonthlyStats aggregates one DailyStats per day with data in a month.
	// Days with zero entries are absent, not zero-valued.
	MonthlyStats struct {
		Month         string       `json:"month"`
		Year          int          `json:"year"`
		Days          []DailyStats `json:"days"`
		TotalML       int          `json:"total_ml"`
		AverageML     float64      `json:"average_ml"`
		DaysGoalMet   int          `json:"days_goal_met"`
		CurrentStreak int          `json:"current_streak"`
		BestStreak    int          `json:"best_streak"`
	}

	// Settings is the single mutable preferences record.
	Settings struct {
		DailyGoalML             int    `json:"daily_goal_ml"`
		ReminderIntervalMinutes int    `json:"reminder_interval_minutes"`
		ReminderEnabled         bool   `json:"reminder_enabled"`
		SoundEnabled            bool   `json:"sound_enabled"`
		StartWithSystem         bool   `json:"start_with_system"`
		Theme                   string `json:"theme"`
	}

	// DayTotal is one grouped history row: a date with its summed intake.
	DayTotal struct {
		Date    string
		TotalML int
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidGoal     = errors.New("invalid daily goal")
	ErrInvalidInterval = errors.New("invalid reminder interval")
	ErrInvalidTheme    = errors.New("invalid theme")
	ErrInvalidMonth    = errors.New("invalid month")
)

// DefaultSettings returns the record created on first initialization.
func DefaultSettings() Settings {
	return Settings{
		DailyGoalML:             DefaultDailyGoalML,
		ReminderIntervalMinutes: 60,
		ReminderEnabled:         true,
		SoundEnabled:            true,
		StartWithSystem:         false,
		Theme:                   "dark",
	}
}

// NewEntry stamps an entry with the local timestamp and its derived calendar
// date. The date is always the calendar-date component of the timestamp at
// the moment of insertion.
func NewEntry(amountML int, now time.Time) Entry {
	return Entry{
		AmountML:  amountML,
		Timestamp: now.Format(TimestampLayout),
		Date:      now.Format(DateLayout),
	}
}

// ValidateAmount rejects volumes the tracker cannot use. The store itself
// accepts any integer; validation is the caller's responsibility.
func ValidateAmount(amountML int) error {
	if amountML <= 0 || amountML > 10000 {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmountML parses a volume string such as "250" or "250ml".
func ParseAmountML(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "ml"))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if err := ValidateAmount(v); err != nil {
		return 0, err
	}
	return v, nil
}

func (s Settings) Validate() error {
	if s.DailyGoalML <= 0 {
		return ErrInvalidGoal
	}
	if s.ReminderIntervalMinutes < 1 {
		return ErrInvalidInterval
	}
	switch s.Theme {
	case "dark", "light":
		return nil
	default:
		return ErrInvalidTheme
	}
}

// ValidateMonth checks a 1-12 month number.
func ValidateMonth(month int) error {
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// MonthName returns the full English month name used in monthly stats.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return "Unknown"
	}
	return time.Month(month).String()
}

// MonthAbbrev returns the three-letter label used by the yearly overview.
func MonthAbbrev(month int) string {
	if month < 1 || month > 12 {
		return "?"
	}
	return time.Month(month).String()[:3]
}

// MonthPrefix formats the zero-padded "YYYY-MM" key used for prefix matching
// against stored dates.
func MonthPrefix(year, month int) string {
	y := strconv.Itoa(year)
	for len(y) < 4 {
		y = "0" + y
	}
	m := strconv.Itoa(month)
	if len(m) < 2 {
		m = "0" + m
	}
	return y + "-" + m
}
