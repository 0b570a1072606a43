// Package dates converts the date shapes the spreadsheet produces into the
// day-first display format the console shows and writes back.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"sheetconsole/internal/platform/sheets"
)

const (
	DisplayLayout   = "02/01/2006"
	TimestampLayout = "02/01/2006 15:04:05"
	ISOLayout       = "2006-01-02"
)

var (
	gvizDatePattern = regexp.MustCompile(`^Date\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)`)
	dayFirstPattern = regexp.MustCompile(`^(\d{2})[/-](\d{2})[/-](\d{4})`)
)

// Normalize renders raw as DD/MM/YYYY.
func Normalize(raw any) string {
	return NormalizeWith(raw, "/")
}

// NormalizeWith renders raw as DD{sep}MM{sep}YYYY. Values it cannot read as a
// date come back stringified and unchanged; it never fails.
func NormalizeWith(raw any, sep string) string {
	s := strings.TrimSpace(sheets.Stringify(raw))
	if s == "" {
		return ""
	}

	if m := gvizDatePattern.FindStringSubmatch(s); m != nil {
		month, monthErr := strconv.Atoi(m[2])
		day, dayErr := strconv.Atoi(m[3])
		if monthErr == nil && dayErr == nil && month >= 0 && month < 12 && day >= 1 && day <= 31 {
			return pad(m[3]) + sep + fmt.Sprintf("%02d", month+1) + sep + m[1]
		}
		return s
	}

	if m := dayFirstPattern.FindStringSubmatch(s); m != nil {
		return m[1] + sep + m[2] + sep + m[3]
	}

	// dateparse fills missing parts with zero values, so "a,b" or "1/" come
	// back as year 0. Only four-digit years count as a parse.
	if t, err := dateparse.ParseLocal(s); err == nil && t.Year() >= 1000 && t.Year() <= 9999 {
		return t.Format("02" + sep + "01" + sep + "2006")
	}
	return s
}

func pad(day string) string {
	if len(day) == 1 {
		return "0" + day
	}
	return day
}

// ParseDisplay reads DD/MM/YYYY (or DD-MM-YYYY) as local midnight.
func ParseDisplay(s string) (time.Time, bool) {
	m := dayFirstPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DisplayLayout, m[1]+"/"+m[2]+"/"+m[3], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ISOToDisplay converts a form date YYYY-MM-DD into DD{sep}MM{sep}YYYY.
func ISOToDisplay(iso, sep string) (string, error) {
	t, err := time.Parse(ISOLayout, strings.TrimSpace(iso))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", iso, err)
	}
	return t.Format("02" + sep + "01" + sep + "2006"), nil
}

// DisplayToISO converts DD-MM-YYYY or DD/MM/YYYY into YYYY-MM-DD for edit
// forms. Unreadable input is returned unchanged.
func DisplayToISO(display string) string {
	t, ok := ParseDisplay(display)
	if !ok {
		return display
	}
	return t.Format(ISOLayout)
}

func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// StartOfDay and EndOfDay bound an inclusive calendar-day range.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
