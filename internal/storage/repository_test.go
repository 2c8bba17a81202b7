package storage

import (
	"context"
	"path/filepath"
	"testing"

	"hydra/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "hydra.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func addEntry(t *testing.T, repo *SQLiteRepository, amount int, date, ts string) core.Entry {
	t.Helper()
	e, err := repo.AddEntry(context.Background(), core.Entry{
		AmountML:  amount,
		Timestamp: ts,
		Date:      date,
	})
	if err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	return e
}

func TestAddEntryAndDayTotal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addEntry(t, repo, 1500, "2024-03-05", "2024-03-05 08:00:00")
	addEntry(t, repo, 1000, "2024-03-05", "2024-03-05 12:30:00")
	addEntry(t, repo, 700, "2024-03-06", "2024-03-06 09:00:00")

	total, count, err := repo.DayTotal(ctx, "2024-03-05")
	if err != nil {
		t.Fatalf("DayTotal: %v", err)
	}
	if total != 2500 || count != 2 {
		t.Errorf("DayTotal = (%d, %d), want (2500, 2)", total, count)
	}

	total, count, err = repo.DayTotal(ctx, "2024-03-07")
	if err != nil {
		t.Fatalf("DayTotal empty date: %v", err)
	}
	if total != 0 || count != 0 {
		t.Errorf("empty date DayTotal = (%d, %d), want (0, 0)", total, count)
	}
}

func TestAddThenRemove(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := addEntry(t, repo, 500, "2024-03-05", "2024-03-05 10:00:00")
	if e.ID == 0 {
		t.Fatal("AddEntry should assign an ID")
	}

	if err := repo.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	total, count, err := repo.DayTotal(ctx, "2024-03-05")
	if err != nil {
		t.Fatalf("DayTotal: %v", err)
	}
	if total != 0 || count != 0 {
		t.Errorf("after removal DayTotal = (%d, %d), want (0, 0)", total, count)
	}
}

func TestDeleteDecreasesSumExactly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addEntry(t, repo, 300, "2024-03-05", "2024-03-05 08:00:00")
	e := addEntry(t, repo, 450, "2024-03-05", "2024-03-05 09:00:00")
	addEntry(t, repo, 200, "2024-03-05", "2024-03-05 10:00:00")

	if err := repo.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	total, count, _ := repo.DayTotal(ctx, "2024-03-05")
	if total != 500 || count != 2 {
		t.Errorf("DayTotal = (%d, %d), want (500, 2)", total, count)
	}
}

func TestEntriesByDateOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addEntry(t, repo, 100, "2024-03-05", "2024-03-05 08:00:00")
	addEntry(t, repo, 200, "2024-03-05", "2024-03-05 14:00:00")
	addEntry(t, repo, 300, "2024-03-05", "2024-03-05 11:00:00")
	addEntry(t, repo, 999, "2024-03-06", "2024-03-06 08:00:00")

	entries, err := repo.EntriesByDate(ctx, "2024-03-05")
	if err != nil {
		t.Fatalf("EntriesByDate: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].AmountML != 200 || entries[1].AmountML != 300 || entries[2].AmountML != 100 {
		t.Errorf("entries not in descending timestamp order: %+v", entries)
	}
}

func TestGetEntry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := addEntry(t, repo, 330, "2024-03-05", "2024-03-05 08:00:00")

	got, err := repo.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got != e {
		t.Errorf("GetEntry = %+v, want %+v", got, e)
	}

	if _, err := repo.GetEntry(ctx, 9999); err == nil {
		t.Error("GetEntry for missing ID should error")
	}
}

func TestMonthDays(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addEntry(t, repo, 3000, "2024-03-01", "2024-03-01 08:00:00")
	addEntry(t, repo, 2000, "2024-03-03", "2024-03-03 08:00:00")
	addEntry(t, repo, 2500, "2024-03-03", "2024-03-03 12:00:00")
	addEntry(t, repo, 9999, "2024-04-01", "2024-04-01 08:00:00")
	addEntry(t, repo, 9999, "2023-03-15", "2023-03-15 08:00:00")

	days, err := repo.MonthDays(ctx, 2024, 3)
	if err != nil {
		t.Fatalf("MonthDays: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("len = %d, want 2 (other months and years excluded)", len(days))
	}
	if days[0].Date != "2024-03-01" || days[1].Date != "2024-03-03" {
		t.Errorf("days not in ascending date order: %+v", days)
	}
	if days[1].TotalML != 4500 || days[1].EntriesCount != 2 {
		t.Errorf("grouped day = %+v, want total 4500 over 2 entries", days[1])
	}
}

func TestDayTotalsDesc(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	addEntry(t, repo, 1000, "2024-03-01", "2024-03-01 08:00:00")
	addEntry(t, repo, 2000, "2024-03-03", "2024-03-03 08:00:00")
	addEntry(t, repo, 500, "2024-03-03", "2024-03-03 19:00:00")

	totals, err := repo.DayTotalsDesc(ctx)
	if err != nil {
		t.Fatalf("DayTotalsDesc: %v", err)
	}
	want := []core.DayTotal{
		{Date: "2024-03-03", TotalML: 2500},
		{Date: "2024-03-01", TotalML: 1000},
	}
	if len(totals) != len(want) {
		t.Fatalf("len = %d, want %d", len(totals), len(want))
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Errorf("totals[%d] = %+v, want %+v", i, totals[i], want[i])
		}
	}
}

func TestSettingsDefaultsAndRoundtrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	s, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if s != core.DefaultSettings() {
		t.Errorf("first read = %+v, want defaults %+v", s, core.DefaultSettings())
	}

	s.DailyGoalML = 2000
	s.ReminderEnabled = false
	s.Theme = "light"
	if err := repo.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	got, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings after save: %v", err)
	}
	if got != s {
		t.Errorf("roundtrip = %+v, want %+v", got, s)
	}
}

func TestDailyGoalReadsSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if goal := repo.DailyGoal(ctx); goal != core.DefaultDailyGoalML {
		t.Errorf("DailyGoal = %d, want default %d", goal, core.DefaultDailyGoalML)
	}

	s, _ := repo.GetSettings(ctx)
	s.DailyGoalML = 3000
	if err := repo.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if goal := repo.DailyGoal(ctx); goal != 3000 {
		t.Errorf("DailyGoal = %d, want 3000", goal)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "hydra.db")

	repo, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	addEntry(t, repo, 250, "2024-03-05", "2024-03-05 08:00:00")
	repo.Close()

	// Reopening must keep data and not re-seed or duplicate settings.
	repo2, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer repo2.Close()

	total, count, err := repo2.DayTotal(context.Background(), "2024-03-05")
	if err != nil {
		t.Fatalf("DayTotal: %v", err)
	}
	if total != 250 || count != 1 {
		t.Errorf("after reopen DayTotal = (%d, %d), want (250, 1)", total, count)
	}
}
