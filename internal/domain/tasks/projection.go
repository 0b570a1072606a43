package tasks

import (
	"regexp"

	"sheetconsole/internal/domain/dates"
	"sheetconsole/internal/domain/match"
	"sheetconsole/internal/platform/sheets"
)

var exactDisplayDate = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// ProjectUniqueTasks maps the UNIQUE tab. Formatted cell text is preferred
// over the raw value.
func ProjectUniqueTasks(table sheets.Table) []UniqueTask {
	out := make([]UniqueTask, 0, len(table.Rows))
	for i, row := range table.Rows {
		if row.Blank() || table.IsHeader(i) {
			continue
		}
		task := UniqueTask{
			RowIndex:        table.SheetRow(i),
			TaskID:          row.Display(1),
			Department:      row.Display(2),
			GivenBy:         row.Display(3),
			Name:            row.Display(4),
			TaskDescription: row.Display(5),
			EndDate:         row.Display(6),
			Frequency:       row.Display(7),
			Reminders:       row.Display(8),
			Attachment:      row.Display(9),
		}
		if task.TaskID == "" && task.Department == "" && task.Name == "" {
			continue
		}
		out = append(out, task)
	}
	return out
}

// ProjectChecklist keeps the Checklist rows assigned to assignee.
func ProjectChecklist(table sheets.Table, assignee string) []ChecklistTask {
	var out []ChecklistTask
	for i, row := range table.Rows {
		if row.Blank() || table.IsHeader(i) {
			continue
		}
		name := row.Value(4)
		if !match.Equal(name, assignee) {
			continue
		}
		task := ChecklistTask{
			RowIndex:      table.SheetRow(i),
			TaskID:        row.Value(1),
			Description:   row.Value(5),
			Date:          dates.Normalize(row.Raw(6)),
			TimestampDate: dates.Normalize(row.Raw(0)),
			Name:          name,
			IsPending:     row.Value(10) == "",
			Remarks:       row.Value(13),
		}
		if exactDisplayDate.MatchString(task.TimestampDate) {
			if ts, ok := dates.ParseDisplay(task.TimestampDate); ok {
				task.TimestampObj = &ts
			}
		}
		out = append(out, task)
	}
	return out
}
