package store

import "testing"

func TestSettingsGetSet(t *testing.T) {
	db := setupStoreTestDB(t)
	ss := NewSettingsStore(db)

	value, err := ss.Get("missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if value != "" {
		t.Errorf("missing key = %q, want empty", value)
	}

	if err := ss.Set("greeting", "hello"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ss.Set("greeting", "goodbye"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, err = ss.Get("greeting")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "goodbye" {
		t.Errorf("value = %q, want goodbye", value)
	}
}

func TestSettingsReminderHour(t *testing.T) {
	db := setupStoreTestDB(t)
	ss := NewSettingsStore(db)

	if got := ss.ReminderHour(); got != 20 {
		t.Errorf("default hour = %d, want 20", got)
	}

	ss.Set(SettingReminderHour, "7")
	if got := ss.ReminderHour(); got != 7 {
		t.Errorf("hour = %d, want 7", got)
	}

	// Malformed and out-of-range values fall back to the default.
	ss.Set(SettingReminderHour, "not-a-number")
	if got := ss.ReminderHour(); got != 20 {
		t.Errorf("hour = %d, want 20 for malformed value", got)
	}
	ss.Set(SettingReminderHour, "25")
	if got := ss.ReminderHour(); got != 20 {
		t.Errorf("hour = %d, want 20 for out-of-range value", got)
	}
}
