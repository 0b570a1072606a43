package holidays

import "errors"

// CacheKey is where the last known holiday list is kept between runs.
const CacheKey = "holidays"

// holidayColumns is the width of a holiday row write, columns A to H; only
// F, G and H carry holiday data.
const holidayColumns = 8

// Holiday is one named day on the calendar tab. Date is DD-MM-YYYY and
// RowIndex the 1-based sheet row it was read from.
type Holiday struct {
	Date     string `json:"date"`
	Day      string `json:"day"`
	Name     string `json:"name"`
	RowIndex int    `json:"rowIndex"`
}

// Form is the add/edit payload. Date is YYYY-MM-DD.
type Form struct {
	Date string `json:"date" validate:"required"`
	Day  string `json:"day" validate:"required"`
	Name string `json:"name" validate:"required,max=200"`
}

var (
	ErrFieldsRequired = errors.New("please fill all fields")
	ErrInvalidDate    = errors.New("date must be YYYY-MM-DD")
	ErrNotFound       = errors.New("holiday not found")
)

// rowData lays a holiday out as an A..H row write.
func rowData(date, day, name string) []string {
	row := make([]string, holidayColumns)
	row[5] = date
	row[6] = day
	row[7] = name
	return row
}
