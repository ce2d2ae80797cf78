package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/emberhabit/ember/internal/auth"
	"github.com/emberhabit/ember/internal/tracker"
)

type StreakHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewStreakHandler(t *tracker.Tracker, logger *slog.Logger) *StreakHandler {
	return &StreakHandler{tracker: t, logger: logger}
}

// Get handles GET /api/streak. Loading runs the continuity check, so a
// missed day surfaces as a reset here.
func (h *StreakHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	st, err := h.tracker.Load(userID)
	if err != nil {
		h.logger.Error("load streak", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to load streak")
		return
	}

	checked, err := h.tracker.IsCheckedInToday(userID)
	if err != nil {
		h.logger.Error("check checked-in state", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to load streak")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"streak":              st,
		"is_checked_in_today": checked,
	})
}

// CheckIn handles POST /api/checkin.
func (h *StreakHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	if _, err := h.tracker.Load(userID); err != nil {
		h.logger.Error("load streak", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to check in")
		return
	}

	res, err := h.tracker.CheckIn(userID)
	if err != nil {
		h.logger.Error("check in", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to check in")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// UseFreeze handles POST /api/streak/freeze.
func (h *StreakHandler) UseFreeze(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	if _, err := h.tracker.Load(userID); err != nil {
		h.logger.Error("load streak", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to use freeze")
		return
	}

	st, err := h.tracker.UseFreeze(userID)
	if err != nil {
		if errors.Is(err, tracker.ErrNoFreezeAvailable) {
			errorJSON(w, http.StatusConflict, "no freezes available")
			return
		}
		h.logger.Error("use freeze", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to use freeze")
		return
	}

	writeJSON(w, http.StatusOK, st)
}
