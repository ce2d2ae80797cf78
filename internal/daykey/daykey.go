// Package daykey converts instants to calendar-day keys (YYYY-MM-DD).
//
// All streak and journal logic keys records by calendar day in a single
// instance-wide timezone, configured once at startup. Day-keys sort
// lexicographically in date order, so string comparison is date comparison.
package daykey

import "time"

const Layout = "2006-01-02"

// Clock produces day-keys in a fixed location. The now func is swappable so
// tests can pin the calendar day.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock creates a Clock for the given location. A nil location means UTC.
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: time.Now}
}

// NewFixedClock creates a Clock whose "now" is frozen at t, for tests.
func NewFixedClock(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// SetNow replaces the time source. Tests use this to advance the calendar.
func (c *Clock) SetNow(now func() time.Time) {
	c.now = now
}

// Now returns the current instant in the clock's location.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current day-key in the clock's location.
func (c *Clock) Today() string {
	return c.now().In(c.loc).Format(Layout)
}

// Yesterday returns the day-key for the calendar day before today.
func (c *Clock) Yesterday() string {
	return c.now().In(c.loc).AddDate(0, 0, -1).Format(Layout)
}

// Valid reports whether s is a well-formed day-key.
func Valid(s string) bool {
	_, err := time.Parse(Layout, s)
	return err == nil
}
