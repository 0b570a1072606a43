package tasks

import (
	"time"

	"sheetconsole/internal/domain/dates"
	"sheetconsole/internal/domain/match"
)

// FilterUniqueTasks matches filter against name, department, description and
// task id, then keeps the first task per assignee name.
func FilterUniqueTasks(tasks []UniqueTask, filter string) []UniqueTask {
	seen := make(map[string]bool)
	out := make([]UniqueTask, 0, len(tasks))
	for _, t := range tasks {
		if !(match.Contains(t.Name, filter) ||
			match.Contains(t.Department, filter) ||
			match.Contains(t.TaskDescription, filter) ||
			match.Contains(t.TaskID, filter)) {
			continue
		}
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		out = append(out, t)
	}
	return out
}

// FilterByRange keeps tasks whose timestamp falls within the calendar days of
// the range, both ends inclusive. Once any bound is set, tasks without a
// timestamp are dropped.
func FilterByRange(tasks []ChecklistTask, r DateRange) []ChecklistTask {
	if r.Open() {
		return tasks
	}
	var start, end time.Time
	if !r.Start.IsZero() {
		start = dates.StartOfDay(r.Start)
	}
	if !r.End.IsZero() {
		end = dates.EndOfDay(r.End)
	}
	out := make([]ChecklistTask, 0, len(tasks))
	for _, t := range tasks {
		if t.TimestampObj == nil {
			continue
		}
		ts := *t.TimestampObj
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out
}
