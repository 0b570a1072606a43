package shared

import (
	"time"

	"sheetconsole/internal/domain/dates"
)

// ParseDate reads a query or payload date as a local calendar day, so it
// compares directly with timestamps read from the sheet. A full RFC3339
// timestamp is also accepted and moved into local time.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.In(time.Local), nil
	}
	return time.ParseInLocation(dates.ISOLayout, value, time.Local)
}
