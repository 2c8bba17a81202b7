// Package core provides the hydration domain model and the pure statistics
// engine: daily rollups, monthly aggregation, and streak derivation. Nothing
// in this package touches storage; callers feed it grouped day rows.
package core

// Percentage computes goal attainment for a day. A goal of zero or less
// yields 0, never a division error or infinity.
func Percentage(totalML, goalML int) float64 {
	if goalML <= 0 {
		return 0
	}
	return float64(totalML) / float64(goalML) * 100
}

// NewDailyStats builds the derived rollup for one date. A date with no
// entries produces the zero-valued result (total 0, count 0, percentage 0).
func NewDailyStats(date string, totalML, entriesCount, goalML int) DailyStats {
	return DailyStats{
		Date:         date,
		TotalML:      totalML,
		GoalML:       goalML,
		EntriesCount: entriesCount,
		Percentage:   Percentage(totalML, goalML),
	}
}

// MonthlyFromDays assembles MonthlyStats from the per-day rollups of one
// month. The month-level aggregates are derived from the day list itself so
// they can never disagree with it. The average divides by the count of days
// with data, not the calendar length of the month. Streak fields are left at
// zero; streaks are a whole-history concept computed separately.
func MonthlyFromDays(monthLabel string, year int, days []DailyStats, goalML int) MonthlyStats {
	stats := MonthlyStats{
		Month: monthLabel,
		Year:  year,
		Days:  days,
	}

	for _, d := range days {
		stats.TotalML += d.TotalML
		if d.TotalML >= goalML {
			stats.DaysGoalMet++
		}
	}
	if len(days) > 0 {
		stats.AverageML = float64(stats.TotalML) / float64(len(days))
	}

	return stats
}
