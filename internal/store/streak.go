package store

import (
	"database/sql"
	"fmt"

	"github.com/emberhabit/ember/internal/model"
)

type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

func scanStreak(scanner interface{ Scan(...any) error }) (*model.Streak, error) {
	var st model.Streak
	var lastCheckIn sql.NullString

	err := scanner.Scan(
		&st.ID, &st.UserID, &st.Current, &st.Longest,
		&lastCheckIn, &st.FreezesAvailable, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastCheckIn.Valid {
		st.LastCheckIn = &lastCheckIn.String
	}
	return &st, nil
}

const streakCols = `id, user_id, current, longest, last_check_in, freezes_available, created_at, updated_at`

func (s *StreakStore) GetByUserID(userID int64) (*model.Streak, error) {
	row := s.db.QueryRow(`SELECT `+streakCols+` FROM streaks WHERE user_id = ?`, userID)
	st, err := scanStreak(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return st, nil
}

// Create inserts the default streak for a user: zero days, no check-in yet,
// full freeze allotment.
func (s *StreakStore) Create(userID int64) (*model.Streak, error) {
	_, err := s.db.Exec(
		`INSERT INTO streaks (user_id, current, longest, last_check_in, freezes_available) VALUES (?, 0, 0, NULL, ?)`,
		userID, model.DefaultFreezes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert streak: %w", err)
	}
	return s.GetByUserID(userID)
}

// GetOrCreate returns the user's streak, creating the default row on first use.
func (s *StreakStore) GetOrCreate(userID int64) (*model.Streak, error) {
	st, err := s.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if st != nil {
		return st, nil
	}
	return s.Create(userID)
}

// Save persists the mutable streak fields.
func (s *StreakStore) Save(st *model.Streak) error {
	var lastCheckIn sql.NullString
	if st.LastCheckIn != nil {
		lastCheckIn = sql.NullString{String: *st.LastCheckIn, Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE streaks SET current = ?, longest = ?, last_check_in = ?, freezes_available = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		st.Current, st.Longest, lastCheckIn, st.FreezesAvailable, st.ID,
	)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	return nil
}
