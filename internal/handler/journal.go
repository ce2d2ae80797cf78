package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/emberhabit/ember/internal/auth"
	"github.com/emberhabit/ember/internal/model"
	"github.com/emberhabit/ember/internal/tracker"
)

type JournalHandler struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

func NewJournalHandler(t *tracker.Tracker, logger *slog.Logger) *JournalHandler {
	return &JournalHandler{tracker: t, logger: logger}
}

type entryRequest struct {
	PrayedFor       string `json:"prayed_for"`
	ReceivedInsight string `json:"received_insight"`
}

// List handles GET /api/journal.
func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	entries, err := h.tracker.Entries(userID)
	if err != nil {
		h.logger.Error("list entries", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to list entries")
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetToday handles GET /api/journal/today. A day without an entry is 200
// with a null body, not a 404; the client renders an empty editor.
func (h *JournalHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	entry, err := h.tracker.TodayEntry(userID)
	if err != nil {
		h.logger.Error("get today entry", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to get entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// SaveToday handles PUT /api/journal/today. Saving implies checking in; the
// response carries the entry and the streak after the implied check-in.
func (h *JournalHandler) SaveToday(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if _, err := h.tracker.Load(userID); err != nil {
		h.logger.Error("load streak", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to save entry")
		return
	}

	entry, err := h.tracker.SaveToday(userID, req.PrayedFor, req.ReceivedInsight)
	if err != nil {
		h.logger.Error("save today entry", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to save entry")
		return
	}

	st, err := h.tracker.Load(userID)
	if err != nil {
		h.logger.Error("reload streak", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to save entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entry":  entry,
		"streak": st,
	})
}

// Update handles PUT /api/journal/{id}: edit the text of any owned entry
// without touching check-in state.
func (h *JournalHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	entry, err := h.tracker.UpdateEntry(userID, id, req.PrayedFor, req.ReceivedInsight)
	if err != nil {
		if errors.Is(err, tracker.ErrEntryNotFound) {
			errorJSON(w, http.StatusNotFound, "entry not found")
			return
		}
		h.logger.Error("update entry", "user_id", userID, "entry_id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to update entry")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
