package store

import "testing"

func TestCheckInRecord(t *testing.T) {
	db := setupStoreTestDB(t)
	userID := createTestUser(t, db, "checkin@example.com")
	cs := NewCheckInStore(db)
	js := NewJournalStore(db)

	if err := cs.Record(userID, "2024-01-01"); err != nil {
		t.Fatalf("record: %v", err)
	}

	has, err := cs.Has(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if !has {
		t.Error("expected check-in row after Record")
	}

	entry, err := js.GetByUserDate(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry == nil || !entry.IsCheckedIn {
		t.Errorf("expected flagged journal entry, got %+v", entry)
	}
}

func TestCheckInRecordIdempotent(t *testing.T) {
	db := setupStoreTestDB(t)
	userID := createTestUser(t, db, "repeat@example.com")
	cs := NewCheckInStore(db)

	if err := cs.Record(userID, "2024-01-01"); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := cs.Record(userID, "2024-01-01"); err != nil {
		t.Fatalf("second record: %v", err)
	}

	var n int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM checkins WHERE user_id = ? AND checkin_date = ?`,
		userID, "2024-01-01",
	).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d check-in rows, want 1", n)
	}
}

func TestCheckInRecordKeepsEntryText(t *testing.T) {
	db := setupStoreTestDB(t)
	userID := createTestUser(t, db, "keeptext@example.com")
	cs := NewCheckInStore(db)
	js := NewJournalStore(db)

	if _, err := js.Create(userID, "2024-01-01", "written first", "kept", false); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if err := cs.Record(userID, "2024-01-01"); err != nil {
		t.Fatalf("record: %v", err)
	}

	entry, err := js.GetByUserDate(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if !entry.IsCheckedIn {
		t.Error("expected flag set on existing entry")
	}
	if entry.PrayedFor != "written first" || entry.ReceivedInsight != "kept" {
		t.Errorf("record overwrote entry text: %q/%q", entry.PrayedFor, entry.ReceivedInsight)
	}
}

func TestCheckInGet(t *testing.T) {
	db := setupStoreTestDB(t)
	userID := createTestUser(t, db, "get@example.com")
	cs := NewCheckInStore(db)

	got, err := cs.Get(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing check-in, got %+v", got)
	}

	if err := cs.Record(userID, "2024-01-01"); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err = cs.Get(userID, "2024-01-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.CheckinDate != "2024-01-01" {
		t.Errorf("get returned %+v", got)
	}
}
