package core

import "time"

// CalculateStreaks walks the full intake history backwards from today and
// returns the current consecutive-day goal-met streak and the best streak
// observed during the scan.
//
// rows must hold one entry per distinct date, summed, ordered descending by
// date (most recent first). For position i the expected calendar date is
// today minus i days; a row that does not match it marks a gap (a day with
// zero entries) and terminates the scan, so runs deeper in history than the
// first gap are never discovered. A row whose date fails to parse is skipped
// for that iteration. An empty history yields (0, 0).
func CalculateStreaks(rows []DayTotal, today time.Time, goalML int) (current, best int) {
	year, month, day := today.Date()
	todayDate := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	tempStreak := 0
	checkingCurrent := true

	for i, row := range rows {
		date, err := time.Parse(DateLayout, row.Date)
		if err != nil {
			continue
		}

		expected := todayDate.AddDate(0, 0, -i)

		switch {
		case date.Equal(expected) && row.TotalML >= goalML:
			tempStreak++
			if checkingCurrent {
				current = tempStreak
			}
		case date.Equal(expected):
			// The calendar chain continues but the goal was missed:
			// the current streak is finalized and the run restarts.
			checkingCurrent = false
			if tempStreak > best {
				best = tempStreak
			}
			tempStreak = 0
		default:
			// Calendar gap: an untracked day halts all further
			// streak consideration.
			if tempStreak > best {
				best = tempStreak
			}
			return current, best
		}
	}

	if tempStreak > best {
		best = tempStreak
	}
	return current, best
}
