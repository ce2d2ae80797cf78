package store

import (
	"database/sql"
	"fmt"

	"github.com/emberhabit/ember/internal/model"
)

type CheckInStore struct {
	db *sql.DB
}

func NewCheckInStore(db *sql.DB) *CheckInStore {
	return &CheckInStore{db: db}
}

func scanCheckIn(scanner interface{ Scan(...any) error }) (*model.CheckIn, error) {
	var c model.CheckIn
	err := scanner.Scan(&c.ID, &c.UserID, &c.CheckinDate, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const checkinCols = `id, user_id, checkin_date, created_at`

// Has reports whether a check-in record exists for the user on the given day.
func (s *CheckInStore) Has(userID int64, date string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM checkins WHERE user_id = ? AND checkin_date = ?`,
		userID, date,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has checkin: %w", err)
	}
	return n > 0, nil
}

func (s *CheckInStore) Get(userID int64, date string) (*model.CheckIn, error) {
	row := s.db.QueryRow(
		`SELECT `+checkinCols+` FROM checkins WHERE user_id = ? AND checkin_date = ?`,
		userID, date,
	)
	c, err := scanCheckIn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkin: %w", err)
	}
	return c, nil
}

// Record materializes the day's check-in in one transaction: insert the
// check-in row (idempotent per day) and create today's journal entry with the
// checked-in flag set, or flag the existing one. Either both writes land or
// neither does.
func (s *CheckInStore) Record(userID int64, date string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO checkins (user_id, checkin_date) VALUES (?, ?)`,
		userID, date,
	); err != nil {
		return fmt.Errorf("insert checkin: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO journal_entries (user_id, entry_date, prayed_for, received_insight, is_checked_in)
		 VALUES (?, ?, '', '', 1)
		 ON CONFLICT(user_id, entry_date)
		 DO UPDATE SET is_checked_in = 1, updated_at = CURRENT_TIMESTAMP`,
		userID, date,
	); err != nil {
		return fmt.Errorf("flag journal entry: %w", err)
	}

	return tx.Commit()
}
