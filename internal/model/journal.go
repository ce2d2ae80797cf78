package model

import "time"

// JournalEntry holds one user's entry for one calendar day. At most one row
// exists per (user, entry_date).
type JournalEntry struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	EntryDate       string    `json:"entry_date"`
	PrayedFor       string    `json:"prayed_for"`
	ReceivedInsight string    `json:"received_insight"`
	IsCheckedIn     bool      `json:"is_checked_in"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CheckIn records that a user marked presence on a given day. At most one row
// exists per (user, checkin_date).
type CheckIn struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	CheckinDate string    `json:"checkin_date"`
	CreatedAt   time.Time `json:"created_at"`
}
