package dates

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"", ""},
		{"Date(2024,0,5)", "05/01/2024"},
		{"Date(2024,11,31,14,5,0)", "31/12/2024"},
		{"05/01/2024 10:00:00", "05/01/2024"},
		{"2024-03-09", "09/03/2024"},
		{"2024-03-09T08:15:00Z", "09/03/2024"},
		{"not a date", "not a date"},
		{"a,b", "a,b"},
		{"1/", "1/"},
		{"12:", "12:"},
		{"8/8/1", "8/8/1"},
		{"Date(2024,99999999999999999999,5)", "Date(2024,99999999999999999999,5)"},
		{"Date(2024,12,5)", "Date(2024,12,5)"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeWithDash(t *testing.T) {
	if got := NormalizeWith("Date(2025,0,26)", "-"); got != "26-01-2025" {
		t.Fatalf("unexpected holiday date %q", got)
	}
}

func TestParseDisplay(t *testing.T) {
	got, ok := ParseDisplay("03/05/2024")
	if !ok {
		t.Fatal("expected date to parse")
	}
	if got.Year() != 2024 || got.Month() != time.May || got.Day() != 3 || got.Hour() != 0 {
		t.Fatalf("unexpected time %v", got)
	}
	if _, ok := ParseDisplay("May 3"); ok {
		t.Fatal("expected failure for non day-first input")
	}
}

func TestISORoundTrip(t *testing.T) {
	display, err := ISOToDisplay("2025-01-26", "-")
	if err != nil || display != "26-01-2025" {
		t.Fatalf("unexpected conversion %q (%v)", display, err)
	}
	if iso := DisplayToISO(display); iso != "2025-01-26" {
		t.Fatalf("unexpected iso %q", iso)
	}
	if _, err := ISOToDisplay("26/01/2025", "-"); err == nil {
		t.Fatal("expected error for non-ISO input")
	}
}

func TestTimestampAndDayBounds(t *testing.T) {
	ts := time.Date(2024, time.May, 1, 9, 5, 7, 0, time.UTC)
	if got := Timestamp(ts); got != "01/05/2024 09:05:07" {
		t.Fatalf("unexpected timestamp %q", got)
	}
	end := EndOfDay(ts)
	if end.Hour() != 23 || end.Minute() != 59 || end.Nanosecond() != int(999*time.Millisecond) {
		t.Fatalf("unexpected end of day %v", end)
	}
	if !StartOfDay(ts).Equal(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start of day %v", StartOfDay(ts))
	}
}
