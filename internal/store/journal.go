package store

import (
	"database/sql"
	"fmt"

	"github.com/emberhabit/ember/internal/model"
)

type JournalStore struct {
	db *sql.DB
}

func NewJournalStore(db *sql.DB) *JournalStore {
	return &JournalStore{db: db}
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.JournalEntry, error) {
	var e model.JournalEntry
	var checkedIn int

	err := scanner.Scan(
		&e.ID, &e.UserID, &e.EntryDate, &e.PrayedFor, &e.ReceivedInsight,
		&checkedIn, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.IsCheckedIn = checkedIn != 0
	return &e, nil
}

const entryCols = `id, user_id, entry_date, prayed_for, received_insight, is_checked_in, created_at, updated_at`

func (s *JournalStore) GetByID(id int64) (*model.JournalEntry, error) {
	row := s.db.QueryRow(`SELECT `+entryCols+` FROM journal_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (s *JournalStore) GetByUserDate(userID int64, date string) (*model.JournalEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+entryCols+` FROM journal_entries WHERE user_id = ? AND entry_date = ?`,
		userID, date,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by date: %w", err)
	}
	return e, nil
}

// ListByUser returns all of a user's entries, newest day first.
func (s *JournalStore) ListByUser(userID int64) ([]model.JournalEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+entryCols+` FROM journal_entries WHERE user_id = ? ORDER BY entry_date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *JournalStore) Create(userID int64, date, prayedFor, receivedInsight string, checkedIn bool) (*model.JournalEntry, error) {
	var ci int
	if checkedIn {
		ci = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO journal_entries (user_id, entry_date, prayed_for, received_insight, is_checked_in) VALUES (?, ?, ?, ?, ?)`,
		userID, date, prayedFor, receivedInsight, ci,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// UpdateText updates the two free-text fields of an entry by id. It never
// touches the checked-in flag, so past-day edits cannot disturb streak state.
func (s *JournalStore) UpdateText(id int64, prayedFor, receivedInsight string) (*model.JournalEntry, error) {
	_, err := s.db.Exec(
		`UPDATE journal_entries SET prayed_for = ?, received_insight = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		prayedFor, receivedInsight, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	return s.GetByID(id)
}

// Upsert creates or updates the entry for (user, date) with the given text
// fields and forces the checked-in flag on.
func (s *JournalStore) Upsert(userID int64, date, prayedFor, receivedInsight string) (*model.JournalEntry, error) {
	_, err := s.db.Exec(
		`INSERT INTO journal_entries (user_id, entry_date, prayed_for, received_insight, is_checked_in)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(user_id, entry_date)
		 DO UPDATE SET prayed_for = excluded.prayed_for, received_insight = excluded.received_insight, is_checked_in = 1, updated_at = CURRENT_TIMESTAMP`,
		userID, date, prayedFor, receivedInsight,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert entry: %w", err)
	}
	return s.GetByUserDate(userID, date)
}
