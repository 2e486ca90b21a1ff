// Package dateutil provides calendar-day boundary helpers.
//
// Challenge windows are stored as dates but compared against wall-clock
// timestamps, so every comparison has to agree on where a day starts and
// ends in the service timezone.
package dateutil

import "time"

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last representable instant of t's calendar day in loc
// (23:59:59.999999999).
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween returns the number of whole calendar days from a to b in loc.
// Negative when b is before a's day.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	return int(StartOfDay(b, loc).Sub(StartOfDay(a, loc)) / (24 * time.Hour))
}
