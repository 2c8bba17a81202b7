package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hydra/internal/core"
)

type addEntryRequest struct {
	AmountML int `json:"amount_ml"`
}

type quickAddRequest struct {
	Preset int `json:"preset"`
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.tracker.AddEntry(r.Context(), req.AmountML)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeError(w, http.StatusUnprocessableEntity, "invalid amount")
			return
		}
		slog.ErrorContext(r.Context(), "Add entry failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save entry")
		return
	}

	s.invalidateEntryStats(entry)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleQuickAdd(w http.ResponseWriter, r *http.Request) {
	var req quickAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.tracker.QuickAdd(r.Context(), req.Preset)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeError(w, http.StatusUnprocessableEntity, "unknown preset")
			return
		}
		slog.ErrorContext(r.Context(), "Quick add failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save entry")
		return
	}

	s.invalidateEntryStats(entry)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	if err := s.tracker.RemoveEntry(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		slog.ErrorContext(r.Context(), "Delete entry failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete entry")
		return
	}

	// The deleted row's date is unknown here, so every cached rollup goes.
	s.invalidateAllStats()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTodayEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.tracker.TodayEntries(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List today entries failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}
	if entries == nil {
		entries = []core.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTodayStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tracker.TodayStats(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Today stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)

	key := monthlyCacheKey(year, month)
	if stats, found := s.monthlyCache.Get(key); found {
		slog.DebugContext(r.Context(), "Monthly stats cache hit", "year", year, "month", month)
		writeJSON(w, http.StatusOK, stats)
		return
	}

	stats, err := s.tracker.MonthlyStats(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Monthly stats failed",
			"year", year, "month", month, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	s.monthlyCache.Set(key, stats)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleYearlyStats(w http.ResponseWriter, r *http.Request) {
	year := parseYear(r)

	key := strconv.Itoa(year)
	if months, found := s.yearlyCache.Get(key); found {
		slog.DebugContext(r.Context(), "Yearly stats cache hit", "year", year)
		writeJSON(w, http.StatusOK, months)
		return
	}

	months, err := s.tracker.YearlyOverview(r.Context(), year)
	if err != nil {
		slog.ErrorContext(r.Context(), "Yearly overview failed", "year", year, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	if months == nil {
		months = []core.MonthlyStats{}
	}

	s.yearlyCache.Set(key, months)
	writeJSON(w, http.StatusOK, months)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.tracker.GetSettings(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Get settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.tracker.SaveSettings(r.Context(), settings); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidGoal),
			errors.Is(err, core.ErrInvalidInterval),
			errors.Is(err, core.ErrInvalidTheme):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Save settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	// Goal changes shift every cached percentage.
	s.invalidateAllStats()
	writeJSON(w, http.StatusOK, settings)
}

// invalidateEntryStats drops cached rollups for the month the entry lands in.
func (s *Server) invalidateEntryStats(e core.Entry) {
	t, err := time.Parse(core.DateLayout, e.Date)
	if err != nil {
		s.invalidateAllStats()
		return
	}
	s.invalidateStats(t.Year(), int(t.Month()))
}
