package dateutil

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	got := StartOfDay(time.Date(2024, 1, 5, 14, 23, 45, 0, time.UTC), time.UTC)
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartOfDay() = %v, want %v", got, want)
	}
}

func TestEndOfDay(t *testing.T) {
	in := time.Date(2024, 1, 5, 0, 0, 1, 0, time.UTC)
	eod := EndOfDay(in, time.UTC)

	if !eod.After(time.Date(2024, 1, 5, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("EndOfDay() = %v, expected the end of Jan 5", eod)
	}
	if !eod.Before(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("EndOfDay() = %v, crossed into the next day", eod)
	}
}

func TestEndOfDayRespectsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2024-01-06 02:00 UTC is still 2024-01-05 in New York.
	in := time.Date(2024, 1, 6, 2, 0, 0, 0, time.UTC)
	eod := EndOfDay(in, loc)
	if eod.In(loc).Day() != 5 {
		t.Errorf("EndOfDay() day = %d in %v, want 5", eod.In(loc).Day(), loc)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 1, 5, 0, 30, 0, 0, time.UTC)
	b := time.Date(2024, 1, 5, 23, 30, 0, 0, time.UTC)
	c := time.Date(2024, 1, 6, 0, 30, 0, 0, time.UTC)

	if !SameDay(a, b, time.UTC) {
		t.Error("expected a and b on the same day")
	}
	if SameDay(a, c, time.UTC) {
		t.Error("expected a and c on different days")
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{
			name: "same day",
			a:    time.Date(2024, 1, 5, 1, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC),
			want: 0,
		},
		{
			name: "consecutive days",
			a:    time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 1, 6, 1, 0, 0, 0, time.UTC),
			want: 1,
		},
		{
			name: "gap",
			a:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
			want: 7,
		},
		{
			name: "reversed",
			a:    time.Date(2024, 1, 6, 1, 0, 0, 0, time.UTC),
			b:    time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC),
			want: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(tt.a, tt.b, time.UTC); got != tt.want {
				t.Errorf("DaysBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}
