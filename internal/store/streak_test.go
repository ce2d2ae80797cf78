package store

import "testing"

func TestStreakCreateDefaults(t *testing.T) {
	db := setupStoreTestDB(t)
	userID := createTestUser(t, db, "streak@example.com")
	ss := NewStreakStore(db)

	st, err := ss.Create(userID)
	if err != nil {
		t.Fatalf("create streak: %v", err)
	}
	if st.Current != 0 || st.Longest != 0 {
		t.Errorf("current/longest = %d/%d, want 0/0", st.Current, st.Longest)
	}
	if st.LastCheckIn != nil {
		t.Errorf("last check-in = %v, want nil", *st.LastCheckIn)
	}
	if st.FreezesAvailable != 3 {
		t.Errorf("freezes = %d, want 3", st.FreezesAvailable)
	}
}

func TestStreakGetMissing(t *testing.T) {
	db := setupStoreTestDB(t)
	ss := NewStreakStore(db)

	st, err := ss.GetByUserID(42)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil for missing streak, got %+v", st)
	}
}

func TestStreakGetOrCreateIdempotent(t *testing.T) {
	db := setupStoreTestDB(t)
	userID := createTestUser(t, db, "once@example.com")
	ss := NewStreakStore(db)

	first, err := ss.GetOrCreate(userID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	second, err := ss.GetOrCreate(userID)
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("two rows created for one user: ids %d and %d", first.ID, second.ID)
	}
}

func TestStreakSaveRoundTrip(t *testing.T) {
	db := setupStoreTestDB(t)
	userID := createTestUser(t, db, "save@example.com")
	ss := NewStreakStore(db)

	st, err := ss.Create(userID)
	if err != nil {
		t.Fatalf("create streak: %v", err)
	}

	day := "2024-03-15"
	st.Current = 7
	st.Longest = 12
	st.LastCheckIn = &day
	st.FreezesAvailable = 1
	if err := ss.Save(st); err != nil {
		t.Fatalf("save streak: %v", err)
	}

	got, err := ss.GetByUserID(userID)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if got.Current != 7 || got.Longest != 12 || got.FreezesAvailable != 1 {
		t.Errorf("got %d/%d freezes=%d", got.Current, got.Longest, got.FreezesAvailable)
	}
	if got.LastCheckIn == nil || *got.LastCheckIn != day {
		t.Errorf("last check-in = %v, want %q", got.LastCheckIn, day)
	}

	// Clearing the marker persists as NULL.
	got.LastCheckIn = nil
	if err := ss.Save(got); err != nil {
		t.Fatalf("save cleared streak: %v", err)
	}
	cleared, err := ss.GetByUserID(userID)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if cleared.LastCheckIn != nil {
		t.Errorf("last check-in = %v, want nil", *cleared.LastCheckIn)
	}
}

func TestStreakOnePerUser(t *testing.T) {
	db := setupStoreTestDB(t)
	userID := createTestUser(t, db, "unique@example.com")
	ss := NewStreakStore(db)

	if _, err := ss.Create(userID); err != nil {
		t.Fatalf("create streak: %v", err)
	}
	if _, err := ss.Create(userID); err == nil {
		t.Error("expected second streak row for same user to fail")
	}
}
