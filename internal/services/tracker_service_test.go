package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"hydra/internal/core"
	"hydra/internal/storage"
)

// fakeStore is an in-memory EntryStore with injectable failures.
type fakeStore struct {
	entries      []core.Entry
	nextID       int64
	settings     core.Settings
	monthErrs    map[int]error
	dayTotals    []core.DayTotal
	dayTotalsErr error
	failDelete   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, settings: core.DefaultSettings()}
}

func (f *fakeStore) AddEntry(_ context.Context, e core.Entry) (core.Entry, error) {
	e.ID = f.nextID
	f.nextID++
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeStore) DeleteEntry(_ context.Context, id int64) error {
	if f.failDelete {
		return errors.New("delete failed")
	}
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) GetEntry(_ context.Context, id int64) (core.Entry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Entry{}, errors.New("not found")
}

func (f *fakeStore) EntriesByDate(_ context.Context, date string) ([]core.Entry, error) {
	var out []core.Entry
	for _, e := range f.entries {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) DayTotal(_ context.Context, date string) (int, int, error) {
	var total, count int
	for _, e := range f.entries {
		if e.Date == date {
			total += e.AmountML
			count++
		}
	}
	return total, count, nil
}

func (f *fakeStore) MonthDays(_ context.Context, year, month int) ([]storage.DayRow, error) {
	if err := f.monthErrs[month]; err != nil {
		return nil, err
	}
	prefix := core.MonthPrefix(year, month)
	byDate := map[string]*storage.DayRow{}
	var order []string
	for _, e := range f.entries {
		if len(e.Date) < len(prefix) || e.Date[:len(prefix)] != prefix {
			continue
		}
		row, ok := byDate[e.Date]
		if !ok {
			row = &storage.DayRow{Date: e.Date}
			byDate[e.Date] = row
			order = append(order, e.Date)
		}
		row.TotalML += e.AmountML
		row.EntriesCount++
	}
	rows := make([]storage.DayRow, 0, len(order))
	for _, d := range order {
		rows = append(rows, *byDate[d])
	}
	return rows, nil
}

func (f *fakeStore) DayTotalsDesc(_ context.Context) ([]core.DayTotal, error) {
	if f.dayTotalsErr != nil {
		return nil, f.dayTotalsErr
	}
	return f.dayTotals, nil
}

func (f *fakeStore) DailyGoal(_ context.Context) int { return f.settings.DailyGoalML }

func (f *fakeStore) GetSettings(_ context.Context) (core.Settings, error) {
	return f.settings, nil
}

func (f *fakeStore) SaveSettings(_ context.Context, s core.Settings) error {
	f.settings = s
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newTestService(store *fakeStore) *TrackerService {
	svc := NewTrackerService(store, nil)
	svc.now = func() time.Time {
		return time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	}
	return svc
}

func TestAddEntry_NilAMQPClient(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	entry, err := svc.AddEntry(context.Background(), 300)
	if err != nil {
		t.Fatalf("AddEntry with nil AMQP client should succeed: %v", err)
	}
	if entry.ID != 1 {
		t.Errorf("expected ID 1, got %d", entry.ID)
	}
	if entry.Date != "2024-06-15" {
		t.Errorf("expected date 2024-06-15, got %s", entry.Date)
	}
}

func TestAddEntry_InvalidAmount(t *testing.T) {
	svc := newTestService(newFakeStore())

	for _, amount := range []int{0, -100, 10001} {
		if _, err := svc.AddEntry(context.Background(), amount); !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestQuickAdd(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	small, err := svc.QuickAdd(ctx, core.QuickAddSmall)
	if err != nil {
		t.Fatalf("QuickAdd small: %v", err)
	}
	large, err := svc.QuickAdd(ctx, core.QuickAddLarge)
	if err != nil {
		t.Fatalf("QuickAdd large: %v", err)
	}
	if small.AmountML != 250 || large.AmountML != 500 {
		t.Errorf("expected 250/500, got %d/%d", small.AmountML, large.AmountML)
	}

	if _, err := svc.QuickAdd(ctx, 333); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for unknown preset, got %v", err)
	}
}

func TestRemoveEntry(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	entry, err := svc.AddEntry(ctx, 500)
	if err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := svc.RemoveEntry(ctx, entry.ID); err != nil {
		t.Fatalf("RemoveEntry: %v", err)
	}
	if len(store.entries) != 0 {
		t.Errorf("expected empty store, got %d entries", len(store.entries))
	}

	if err := svc.RemoveEntry(ctx, 99); err == nil {
		t.Error("expected error removing missing entry")
	}
}

func TestTodayStats(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, amount := range []int{500, 750, 1250} {
		if _, err := svc.AddEntry(ctx, amount); err != nil {
			t.Fatalf("AddEntry: %v", err)
		}
	}

	stats, err := svc.TodayStats(ctx)
	if err != nil {
		t.Fatalf("TodayStats: %v", err)
	}
	if stats.TotalML != 2500 {
		t.Errorf("expected total 2500, got %d", stats.TotalML)
	}
	if stats.EntriesCount != 3 {
		t.Errorf("expected 3 entries, got %d", stats.EntriesCount)
	}
	if stats.Percentage != 62.5 {
		t.Errorf("expected 62.5%%, got %v", stats.Percentage)
	}
}

func TestMonthlyStats_InvalidMonth(t *testing.T) {
	svc := newTestService(newFakeStore())

	for _, month := range []int{0, 13, -1} {
		if _, err := svc.MonthlyStats(context.Background(), 2024, month); !errors.Is(err, core.ErrInvalidMonth) {
			t.Errorf("month %d: expected ErrInvalidMonth, got %v", month, err)
		}
	}
}

func TestYearlyOverview_OmitsFailingMonth(t *testing.T) {
	store := newFakeStore()
	store.monthErrs = map[int]error{3: errors.New("query failed")}
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.AddEntry(ctx, 2000); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	months, err := svc.YearlyOverview(ctx, 2024)
	if err != nil {
		t.Fatalf("YearlyOverview: %v", err)
	}
	if len(months) != 11 {
		t.Fatalf("expected 11 months with one failing, got %d", len(months))
	}
	for _, m := range months {
		if m.Month == "Mar" {
			t.Error("failing month should be omitted")
		}
		if m.CurrentStreak != 0 || m.BestStreak != 0 {
			t.Errorf("month %s: yearly streaks must stay zero", m.Month)
		}
	}
	if months[0].Month != "Jan" || months[len(months)-1].Month != "Dec" {
		t.Errorf("expected Jan..Dec ordering, got %s..%s",
			months[0].Month, months[len(months)-1].Month)
	}

	// June carries the single entry.
	for _, m := range months {
		if m.Month == "Jun" && m.TotalML != 2000 {
			t.Errorf("expected Jun total 2000, got %d", m.TotalML)
		}
	}
}

func TestSaveSettings_Validation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	bad := core.DefaultSettings()
	bad.DailyGoalML = 0
	if err := svc.SaveSettings(ctx, bad); !errors.Is(err, core.ErrInvalidGoal) {
		t.Errorf("expected ErrInvalidGoal, got %v", err)
	}

	good := core.DefaultSettings()
	good.DailyGoalML = 3000
	good.Theme = "light"
	if err := svc.SaveSettings(ctx, good); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	saved, err := svc.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if saved.DailyGoalML != 3000 || saved.Theme != "light" {
		t.Errorf("settings not persisted: %+v", saved)
	}
}

func TestStreaks_UsesFullHistory(t *testing.T) {
	store := newFakeStore()
	store.dayTotals = []core.DayTotal{
		{Date: "2024-06-15", TotalML: 4200},
		{Date: "2024-06-14", TotalML: 4000},
		{Date: "2024-06-13", TotalML: 1000},
	}
	svc := newTestService(store)

	current, best := svc.Streaks(context.Background())
	if current != 2 || best != 2 {
		t.Errorf("expected streaks 2/2, got %d/%d", current, best)
	}
}

func TestStreaks_UnreadableHistoryIsZero(t *testing.T) {
	store := newFakeStore()
	store.dayTotalsErr = errors.New("disk I/O error")
	svc := newTestService(store)

	current, best := svc.Streaks(context.Background())
	if current != 0 || best != 0 {
		t.Errorf("expected 0/0 when history is unreadable, got %d/%d", current, best)
	}
}

func TestMonthlyStats_StreakFailureDoesNotFailMonth(t *testing.T) {
	store := newFakeStore()
	store.dayTotalsErr = errors.New("disk I/O error")
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.AddEntry(ctx, 2000); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	stats, err := svc.MonthlyStats(ctx, 2024, 6)
	if err != nil {
		t.Fatalf("MonthlyStats should survive a streak read failure: %v", err)
	}
	if stats.TotalML != 2000 {
		t.Errorf("expected day data intact, got total %d", stats.TotalML)
	}
	if stats.CurrentStreak != 0 || stats.BestStreak != 0 {
		t.Errorf("expected zero streaks on unreadable history, got %d/%d",
			stats.CurrentStreak, stats.BestStreak)
	}
}
