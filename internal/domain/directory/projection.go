package directory

import "sheetconsole/internal/platform/sheets"

// headerDepartment marks a header row that leaked into the data range.
const headerDepartment = "Department"

// ProjectUsers maps the users tab onto User values. Row indexes come from
// the table, so they hold whether or not the reader consumed the header.
func ProjectUsers(table sheets.Table) []User {
	users := make([]User, 0, len(table.Rows))
	for i, row := range table.Rows {
		if row.Blank() || table.IsHeader(i) {
			continue
		}
		department := row.Value(0)
		if department == headerDepartment {
			continue
		}
		user := User{
			RowIndex:    table.SheetRow(i),
			Department:  department,
			GivenBy:     row.Value(1),
			Designation: row.Value(2),
			Username:    row.Value(3),
			Password:    row.Value(4),
			Role:        row.Value(5),
			Email:       row.Value(6),
			Number:      row.Value(7),
		}
		if user.Username == "" {
			continue
		}
		users = append(users, user)
	}
	return users
}
