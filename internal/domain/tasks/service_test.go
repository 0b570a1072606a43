package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"sheetconsole/internal/platform/sheets"
)

type fakeReader struct {
	table sheets.Table
	err   error
	reads int
}

func (f *fakeReader) ReadTable(context.Context, string) (sheets.Table, error) {
	f.reads++
	return f.table, f.err
}

type fakeWriter struct {
	requests []sheets.WriteRequest
	err      error
}

func (f *fakeWriter) Write(_ context.Context, req sheets.WriteRequest) (sheets.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return sheets.Result{}, f.err
	}
	return sheets.Result{Success: true}, nil
}

func table(rows ...[]any) sheets.Table {
	t := sheets.Table{}
	for _, r := range rows {
		if r == nil {
			t.Rows = append(t.Rows, sheets.Row{})
			continue
		}
		t.Rows = append(t.Rows, sheets.RowFromValues(r))
	}
	return t
}

func uniqueTable() sheets.Table {
	return table(
		[]any{"", "Task ID", "Department", "Given By", "Name", "Description"},
		[]any{"", "T1", "Sales", "Ravi", "Alice", "Call leads"},
		[]any{"", "T2", "Sales", "Ravi", "Alice", "Send quotes"},
		[]any{"", "T3", "Ops", "Meera", "Bob", "Stock count"},
		[]any{"", "", "", "", "", "orphan description"},
	)
}

func checklistTable() sheets.Table {
	header := []any{"Timestamp", "Task ID", "", "", "Name", "Description", "Planned"}
	row := func(ts, id, name, done, remark string) []any {
		r := make([]any, 14)
		for i := range r {
			r[i] = ""
		}
		r[0], r[1], r[4], r[5], r[6], r[10], r[13] = ts, id, name, "desc "+id, "Date(2024,4,1)", done, remark
		return r
	}
	return table(
		header,
		row("Date(2024,3,30,9,0,0)", "C1", "Alice", "", ""),
		row("01/05/2024 08:00:00", "C2", "alice ", "", ""),
		row("2024-05-03", "C3", "Alice", "02/05/2024", "done"),
		row("Date(2024,4,4)", "C4", "Alice", "", ""),
		row("", "C5", "Alice", "", ""),
		row("02/05/2024", "C6", "Bob", "", ""),
	)
}

func TestProjectUniqueTasks(t *testing.T) {
	tasks := ProjectUniqueTasks(uniqueTable())
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].RowIndex != 2 || tasks[0].TaskID != "T1" || tasks[2].RowIndex != 4 {
		t.Fatalf("unexpected projection %+v", tasks)
	}
}

func TestProjectUniqueTasksWhenReaderConsumedHeader(t *testing.T) {
	tbl := sheets.TableFromValues([][]any{
		{"", "Task ID", "Department", "Given By", "Name"},
		{"", "T1", "Sales", "Ravi", "Alice"},
		{"", "T2", "Ops", "Meera", "Bob"},
	}, 1)
	tasks := ProjectUniqueTasks(tbl)
	if len(tasks) != 2 || tasks[0].TaskID != "T1" || tasks[0].RowIndex != 2 || tasks[1].RowIndex != 3 {
		t.Fatalf("unexpected projection %+v", tasks)
	}
}

func TestProjectUniqueTasksPrefersFormatted(t *testing.T) {
	tbl := table([]any{"header"})
	tbl.Rows = append(tbl.Rows, sheets.Row{C: []*sheets.Cell{nil, {V: 17.0, F: "T-017"}, {V: "Ops"}}})
	tasks := ProjectUniqueTasks(tbl)
	if len(tasks) != 1 || tasks[0].TaskID != "T-017" {
		t.Fatalf("expected formatted task id, got %+v", tasks)
	}
}

func TestUniqueTasksFilterAndDedupe(t *testing.T) {
	reader := &fakeReader{table: uniqueTable()}
	svc := NewService(reader, &fakeReader{}, &fakeWriter{}, "UNIQUE", "Checklist")

	all, err := svc.UniqueTasks(context.Background(), "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 || all[0].TaskID != "T1" || all[1].Name != "Bob" {
		t.Fatalf("expected one task per assignee, got %+v", all)
	}

	quotes, _ := svc.UniqueTasks(context.Background(), "QUOTES", false)
	if len(quotes) != 1 || quotes[0].TaskID != "T2" {
		t.Fatalf("filter should run before dedupe, got %+v", quotes)
	}
	if reader.reads != 1 {
		t.Fatalf("tab should be read once, got %d reads", reader.reads)
	}
	if _, err := svc.UniqueTasks(context.Background(), "", true); err != nil || reader.reads != 2 {
		t.Fatalf("refresh should re-read, got %d reads (%v)", reader.reads, err)
	}
}

func TestProjectChecklist(t *testing.T) {
	tasks := ProjectChecklist(checklistTable(), "ALICE")
	if len(tasks) != 5 {
		t.Fatalf("expected 5 tasks for Alice, got %d", len(tasks))
	}
	first := tasks[0]
	if first.RowIndex != 2 || first.TimestampDate != "30/04/2024" || first.Date != "01/05/2024" {
		t.Fatalf("unexpected first task %+v", first)
	}
	if first.TimestampObj == nil || first.TimestampObj.Day() != 30 {
		t.Fatalf("expected parsed timestamp, got %v", first.TimestampObj)
	}
	if !first.IsPending || tasks[2].IsPending {
		t.Fatal("pending flag should follow column K")
	}
	if tasks[2].Remarks != "done" {
		t.Fatalf("unexpected remarks %q", tasks[2].Remarks)
	}
	if tasks[4].TimestampObj != nil {
		t.Fatal("row without timestamp should have no parsed time")
	}
}

func TestChecklistRangeFilter(t *testing.T) {
	svc := NewService(&fakeReader{}, &fakeReader{table: checklistTable()}, &fakeWriter{}, "UNIQUE", "Checklist")
	start := time.Date(2024, time.May, 1, 15, 0, 0, 0, time.Local)
	end := time.Date(2024, time.May, 3, 0, 0, 0, 0, time.Local)
	tasks, err := svc.Checklist(context.Background(), "Alice", DateRange{Start: start, End: end})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 || tasks[0].TaskID != "C2" || tasks[1].TaskID != "C3" {
		t.Fatalf("unexpected range result %+v", tasks)
	}

	all, _ := svc.Checklist(context.Background(), "Alice", DateRange{})
	if len(all) != 5 {
		t.Fatalf("open range should keep every row, got %d", len(all))
	}
	if who, current := svc.Current(); who != "Alice" || len(current) != 5 {
		t.Fatalf("unexpected current state %s %d", who, len(current))
	}
}

func TestSubmitLeave(t *testing.T) {
	writer := &fakeWriter{}
	svc := NewService(&fakeReader{}, &fakeReader{table: checklistTable()}, writer, "UNIQUE", "Checklist")
	svc.Now = func() time.Time { return time.Date(2024, time.April, 28, 7, 8, 9, 0, time.Local) }

	result, err := svc.SubmitLeave(context.Background(), LeaveRequest{
		Assignee:   "Alice",
		StartDate:  "2024-05-01",
		EndDate:    "2024-05-03",
		RowIndexes: []int{3, 5, 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Submitted != 1 || result.Remarks != "Leave: 01/05/2024 to 03/05/2024" {
		t.Fatalf("unexpected result %+v", result)
	}
	req := writer.requests[0]
	if req.Action != sheets.ActionUpdateTaskData || req.SheetName != "Checklist" || req.RowIndex != 0 {
		t.Fatalf("unexpected request %+v", req)
	}
	payload, _ := json.Marshal(req.RowData)
	want := `[{"taskId":"C2","rowIndex":3,"remarks":"Leave: 01/05/2024 to 03/05/2024","status":"Leave","actualDate":"28/04/2024 07:08:09"}]`
	if string(payload) != want {
		t.Fatalf("unexpected payload\n got %s\nwant %s", payload, want)
	}
}

func TestSubmitLeaveValidatesBeforeNetwork(t *testing.T) {
	reader := &fakeReader{table: checklistTable()}
	writer := &fakeWriter{}
	svc := NewService(&fakeReader{}, reader, writer, "UNIQUE", "Checklist")

	cases := []struct {
		req  LeaveRequest
		want error
	}{
		{LeaveRequest{Assignee: "Alice", StartDate: "2024-05-01", EndDate: "2024-05-03"}, ErrNoTasksSelected},
		{LeaveRequest{Assignee: "Alice", StartDate: "2024-05-01", RowIndexes: []int{2}}, ErrDatesRequired},
		{LeaveRequest{Assignee: "Alice", StartDate: "2024-05-04", EndDate: "2024-05-03", RowIndexes: []int{2}}, ErrDateOrder},
		{LeaveRequest{Assignee: "Alice", StartDate: "01/05/2024", EndDate: "2024-05-03", RowIndexes: []int{2}}, ErrInvalidDate},
	}
	for _, tc := range cases {
		if _, err := svc.SubmitLeave(context.Background(), tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
	if reader.reads != 0 || len(writer.requests) != 0 {
		t.Fatalf("validation failures must not touch the network (reads=%d writes=%d)", reader.reads, len(writer.requests))
	}
}

func TestSubmitLeaveBackendFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("Unknown action")}
	svc := NewService(&fakeReader{}, &fakeReader{table: checklistTable()}, writer, "UNIQUE", "Checklist")
	_, err := svc.SubmitLeave(context.Background(), LeaveRequest{
		Assignee: "Alice", StartDate: "2024-05-01", EndDate: "2024-05-01", RowIndexes: []int{3},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
