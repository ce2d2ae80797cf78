// Package tracker implements the streak continuity and check-in state
// machine: when a streak increments, resets, or is preserved by a freeze, and
// how that state stays consistent with per-day journal and check-in records.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/emberhabit/ember/internal/daykey"
	"github.com/emberhabit/ember/internal/model"
	"github.com/emberhabit/ember/internal/store"
)

// ErrNoFreezeAvailable is returned by UseFreeze when the user has spent all
// freezes. User-correctable; state is left unchanged.
var ErrNoFreezeAvailable = errors.New("no freeze available")

// ErrEntryNotFound is returned when an entry id does not exist or belongs to
// another user.
var ErrEntryNotFound = errors.New("journal entry not found")

// Notifier delivers transient user-facing toasts. All tracker outcomes the
// user should see (reset, already checked in, freeze spent, entry saved) go
// through here.
type Notifier interface {
	Toast(userID int64, level, message string)
}

// Toast levels.
const (
	ToastInfo    = "info"
	ToastSuccess = "success"
	ToastError   = "error"
)

// Tracker composes the streak, journal, and check-in stores. All operations
// take the user id explicitly; nothing is read from ambient state.
type Tracker struct {
	streaks  *store.StreakStore
	journal  *store.JournalStore
	checkins *store.CheckInStore
	clock    *daykey.Clock
	notifier Notifier
	logger   *slog.Logger
}

func New(
	streaks *store.StreakStore,
	journal *store.JournalStore,
	checkins *store.CheckInStore,
	clock *daykey.Clock,
	notifier Notifier,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		streaks:  streaks,
		journal:  journal,
		checkins: checkins,
		clock:    clock,
		notifier: notifier,
		logger:   logger,
	}
}

func (t *Tracker) toast(userID int64, level, message string) {
	if t.notifier != nil {
		t.notifier.Toast(userID, level, message)
	}
}

// CheckInResult reports the outcome of a check-in attempt.
type CheckInResult struct {
	Streak  *model.Streak `json:"streak"`
	Updated bool          `json:"updated"`
}

// Load returns the user's streak, creating the default row on first use, then
// runs the continuity check: a last check-in older than yesterday resets the
// current count and clears the check-in marker. Longest and the remaining
// freezes are never touched by a reset.
//
// Continuity is evaluated lazily, here only. There is no background timer; a
// missed day is detected the next time the streak is read, which is the next
// time anyone could see it.
func (t *Tracker) Load(userID int64) (*model.Streak, error) {
	st, err := t.streaks.GetOrCreate(userID)
	if err != nil {
		return nil, fmt.Errorf("load streak: %w", err)
	}

	if st.LastCheckIn == nil {
		return st, nil
	}

	yesterday := t.clock.Yesterday()
	if *st.LastCheckIn < yesterday {
		st.Current = 0
		st.LastCheckIn = nil
		if err := t.streaks.Save(st); err != nil {
			return nil, fmt.Errorf("reset streak: %w", err)
		}
		t.logger.Info("streak reset", "user_id", userID)
		t.toast(userID, ToastError, "Your streak was reset because you missed a day.")
	}

	return st, nil
}

// IsCheckedInToday reports whether the user has already marked presence
// today, derived from today's journal entry flag or check-in record.
func (t *Tracker) IsCheckedInToday(userID int64) (bool, error) {
	today := t.clock.Today()

	entry, err := t.journal.GetByUserDate(userID, today)
	if err != nil {
		return false, err
	}
	if entry != nil && entry.IsCheckedIn {
		return true, nil
	}

	return t.checkins.Has(userID, today)
}

// CheckIn marks presence for today. Idempotent: only the first call on a
// calendar day mutates the streak. The per-day records (check-in row plus
// journal entry flag) are written in one transaction; a persistence failure
// surfaces an error toast and reports failure, never partial success.
func (t *Tracker) CheckIn(userID int64) (*CheckInResult, error) {
	checked, err := t.IsCheckedInToday(userID)
	if err != nil {
		t.toast(userID, ToastError, "Could not check in. Please try again.")
		return nil, fmt.Errorf("check checked-in state: %w", err)
	}
	if checked {
		st, err := t.streaks.GetOrCreate(userID)
		if err != nil {
			return nil, fmt.Errorf("load streak: %w", err)
		}
		t.toast(userID, ToastInfo, "You've already checked in today!")
		return &CheckInResult{Streak: st, Updated: false}, nil
	}

	return t.checkIn(userID)
}

// checkIn performs the record write and streak increment without re-deriving
// the checked-in flag. SaveToday calls this directly after its upsert, which
// has already set today's flag.
func (t *Tracker) checkIn(userID int64) (*CheckInResult, error) {
	today := t.clock.Today()

	st, err := t.streaks.GetOrCreate(userID)
	if err != nil {
		return nil, fmt.Errorf("load streak: %w", err)
	}

	// Streak already counted today (e.g. a freeze was pressed earlier):
	// materialize the day's records but leave the streak alone.
	if st.LastCheckIn != nil && *st.LastCheckIn == today {
		if err := t.checkins.Record(userID, today); err != nil {
			t.toast(userID, ToastError, "Could not check in. Please try again.")
			return nil, fmt.Errorf("record check-in: %w", err)
		}
		t.toast(userID, ToastInfo, "You've already checked in today!")
		return &CheckInResult{Streak: st, Updated: false}, nil
	}

	if err := t.checkins.Record(userID, today); err != nil {
		t.toast(userID, ToastError, "Could not check in. Please try again.")
		return nil, fmt.Errorf("record check-in: %w", err)
	}

	st.Current++
	if st.Current > st.Longest {
		st.Longest = st.Current
	}
	st.LastCheckIn = &today

	if err := t.streaks.Save(st); err != nil {
		// The day's records exist but the count didn't land. Under-counting
		// is safe: tomorrow's check-in still increments, and the continuity
		// check reconciles on next load.
		t.toast(userID, ToastError, "Could not update your streak. Please try again.")
		return nil, fmt.Errorf("save streak: %w", err)
	}

	t.logger.Info("checked in", "user_id", userID, "streak", st.Current)
	t.toast(userID, ToastSuccess, fmt.Sprintf("Checked in! Current streak: %d %s", st.Current, pluralDay(st.Current)))
	return &CheckInResult{Streak: st, Updated: true}, nil
}

// UseFreeze spends one freeze credit and refreshes the last check-in marker
// to today, preserving continuity across a missed day. It does not change the
// current or longest counts.
//
// A freeze is spent unconditionally when pressed, even on a day the user
// already checked in. The source behavior has no same-day guard; whether it
// should is an open design question, so the behavior is kept and pinned by
// tests rather than silently fixed.
func (t *Tracker) UseFreeze(userID int64) (*model.Streak, error) {
	st, err := t.streaks.GetOrCreate(userID)
	if err != nil {
		return nil, fmt.Errorf("load streak: %w", err)
	}

	if st.FreezesAvailable <= 0 {
		t.toast(userID, ToastError, "No freezes available!")
		return nil, ErrNoFreezeAvailable
	}

	today := t.clock.Today()
	st.FreezesAvailable--
	st.LastCheckIn = &today

	if err := t.streaks.Save(st); err != nil {
		t.toast(userID, ToastError, "Could not use freeze. Please try again.")
		return nil, fmt.Errorf("save streak: %w", err)
	}

	t.logger.Info("freeze used", "user_id", userID, "remaining", st.FreezesAvailable)
	t.toast(userID, ToastSuccess, fmt.Sprintf("Freeze used! Streak preserved. %d %s remaining.", st.FreezesAvailable, pluralFreeze(st.FreezesAvailable)))
	return st, nil
}

// SaveToday creates or updates today's journal entry and, if the user was not
// already checked in, performs the check-in as part of the same operation.
// Saving a journal entry always implies presence for the day.
func (t *Tracker) SaveToday(userID int64, prayedFor, receivedInsight string) (*model.JournalEntry, error) {
	today := t.clock.Today()

	wasChecked, err := t.IsCheckedInToday(userID)
	if err != nil {
		t.toast(userID, ToastError, "Could not save your entry. Please try again.")
		return nil, fmt.Errorf("check checked-in state: %w", err)
	}

	entry, err := t.journal.Upsert(userID, today, prayedFor, receivedInsight)
	if err != nil {
		t.toast(userID, ToastError, "Could not save your entry. Please try again.")
		return nil, fmt.Errorf("save entry: %w", err)
	}

	if !wasChecked {
		if _, err := t.checkIn(userID); err != nil {
			return nil, fmt.Errorf("check in on save: %w", err)
		}
	}

	t.toast(userID, ToastSuccess, "Journal entry saved!")
	return entry, nil
}

// UpdateEntry edits an owned entry by id, regardless of its date. Check-in
// and streak state are untouched: editing a past day must not retroactively
// alter today's streak.
func (t *Tracker) UpdateEntry(userID, entryID int64, prayedFor, receivedInsight string) (*model.JournalEntry, error) {
	entry, err := t.journal.GetByID(entryID)
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	if entry == nil || entry.UserID != userID {
		return nil, ErrEntryNotFound
	}

	updated, err := t.journal.UpdateText(entryID, prayedFor, receivedInsight)
	if err != nil {
		t.toast(userID, ToastError, "Could not update your entry. Please try again.")
		return nil, fmt.Errorf("update entry: %w", err)
	}

	t.toast(userID, ToastSuccess, "Journal entry updated!")
	return updated, nil
}

// TodayEntry returns today's journal entry, or nil if none exists yet.
func (t *Tracker) TodayEntry(userID int64) (*model.JournalEntry, error) {
	return t.journal.GetByUserDate(userID, t.clock.Today())
}

// Entries returns all of the user's journal entries, newest day first.
func (t *Tracker) Entries(userID int64) ([]model.JournalEntry, error) {
	return t.journal.ListByUser(userID)
}

func pluralDay(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

func pluralFreeze(n int) string {
	if n == 1 {
		return "freeze"
	}
	return "freezes"
}
