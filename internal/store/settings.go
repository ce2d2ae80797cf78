package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Setting keys.
const (
	SettingReminderHour = "reminder_hour"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ReminderHour returns the hour of day (0-23) at which unreminded users get a
// check-in nudge. Defaults to 20:00 when unset or malformed.
func (s *SettingsStore) ReminderHour() int {
	const defaultHour = 20

	value, err := s.Get(SettingReminderHour)
	if err != nil || value == "" {
		return defaultHour
	}
	hour, err := strconv.Atoi(value)
	if err != nil || hour < 0 || hour > 23 {
		return defaultHour
	}
	return hour
}
