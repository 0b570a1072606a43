package directory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"sheetconsole/internal/platform/sheets"
)

type fakeReader struct {
	mu    sync.Mutex
	table sheets.Table
	err   error
	reads int
}

func (f *fakeReader) ReadTable(context.Context, string) (sheets.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.table, f.err
}

type fakeWriter struct {
	mu       sync.Mutex
	requests []sheets.WriteRequest
	failAt   int
	err      error
}

func (f *fakeWriter) Write(_ context.Context, req sheets.WriteRequest) (sheets.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil && (f.failAt == 0 || len(f.requests) == f.failAt) {
		return sheets.Result{}, f.err
	}
	return sheets.Result{Success: true}, nil
}

type fakeScheduler struct {
	delays []time.Duration
	jobs   []func(context.Context) (any, error)
}

func (f *fakeScheduler) After(delay time.Duration, _ string, run func(context.Context) (any, error)) {
	f.delays = append(f.delays, delay)
	f.jobs = append(f.jobs, run)
}

// usersTable builds a gviz-shaped read: the export consumed one header row.
func usersTable(rows ...[]any) sheets.Table {
	table := sheets.Table{HeaderRows: 1}
	for _, r := range rows {
		if r == nil {
			table.Rows = append(table.Rows, sheets.Row{})
			continue
		}
		table.Rows = append(table.Rows, sheets.RowFromValues(r))
	}
	return table
}

func sampleTable() sheets.Table {
	return usersTable(
		[]any{"Department", "Given By", "Designation", "Doer's Name", "password", "Role", "ID", "Number"},
		[]any{"Sales", "Ravi", "Manager", "Alice", "pw1", "admin", "alice@example.com", 9876543210.0},
		[]any{"Ops", "Ravi", "Clerk", "Bob", "pw2", "user", "", ""},
		nil,
		[]any{"Sales", "Meera", "Agent", "Malik", "pw3", "user", "", ""},
	)
}

func newTestService(reader *fakeReader, writer *fakeWriter, scheduler *fakeScheduler) *Service {
	return NewService(reader, writer, "Whatsapp", scheduler, 2500*time.Millisecond)
}

func TestProjectUsers(t *testing.T) {
	users := ProjectUsers(sampleTable())
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	alice := users[0]
	if alice.RowIndex != 3 || alice.Username != "Alice" || alice.Number != "9876543210" {
		t.Fatalf("unexpected projection %+v", alice)
	}
	if users[2].RowIndex != 6 {
		t.Fatalf("blank rows still count toward row index, got %d", users[2].RowIndex)
	}
}

func TestProjectUsersRowsFollowHeaderCount(t *testing.T) {
	values := [][]any{
		{"Department", "Given By", "Designation", "Doer's Name"},
		{"Sales", "Ravi", "Manager", "Alice"},
		{"Ops", "Ravi", "Clerk", "Bob"},
	}
	for _, skip := range []int{0, 1} {
		users := ProjectUsers(sheets.TableFromValues(values, skip))
		if len(users) != 2 || users[0].Username != "Alice" || users[0].RowIndex != 2 || users[1].RowIndex != 3 {
			t.Fatalf("skip %d: unexpected projection %+v", skip, users)
		}
	}
}

func TestProjectUsersSkipsRowsWithoutUsername(t *testing.T) {
	users := ProjectUsers(usersTable([]any{"Sales", "Ravi", "", ""}))
	if len(users) != 0 {
		t.Fatalf("expected no users, got %+v", users)
	}
}

func TestRowDataRoundTrip(t *testing.T) {
	users := ProjectUsers(sampleTable())
	for _, u := range users {
		values := make([]any, 0, userColumns)
		for _, v := range u.RowData() {
			values = append(values, v)
		}
		again := ProjectUsers(usersTable(values))
		again[0].RowIndex = u.RowIndex
		if !reflect.DeepEqual(again[0], u) {
			t.Fatalf("round trip mismatch: %+v vs %+v", again[0], u)
		}
	}
}

func TestListFiltersByUsername(t *testing.T) {
	svc := newTestService(&fakeReader{table: sampleTable()}, &fakeWriter{}, nil)
	users, err := svc.List(context.Background(), "ALI")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 || users[0].Username != "Alice" || users[1].Username != "Malik" {
		t.Fatalf("unexpected filter result %+v", users)
	}
}

func TestSaveNewUserTargetsNextRow(t *testing.T) {
	writer := &fakeWriter{}
	scheduler := &fakeScheduler{}
	reader := &fakeReader{table: sampleTable()}
	svc := newTestService(reader, writer, scheduler)

	saved, err := svc.SaveUser(context.Background(), UserForm{Username: "Dana", Department: "Ops"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.RowIndex != 7 || saved.Role != RoleUser {
		t.Fatalf("unexpected saved user %+v", saved)
	}
	req := writer.requests[0]
	if req.Action != sheets.ActionInsert || req.RowIndex != 0 || req.Extra.Get("timestampColumn") != "-1" {
		t.Fatalf("unexpected write request %+v", req)
	}
	if len(scheduler.delays) != 1 || scheduler.delays[0] != 2500*time.Millisecond {
		t.Fatalf("expected one reconcile after 2.5s, got %v", scheduler.delays)
	}

	users, _ := svc.List(context.Background(), "")
	if len(users) != 4 {
		t.Fatalf("optimistic insert should be visible, got %d users", len(users))
	}

	if _, err := scheduler.jobs[0](context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	users, _ = svc.List(context.Background(), "")
	if len(users) != 3 || reader.reads != 2 {
		t.Fatalf("reconcile should replace state with the sheet, got %d users after %d reads", len(users), reader.reads)
	}
}

func TestSaveNewUserOnEmptySheet(t *testing.T) {
	writer := &fakeWriter{}
	svc := newTestService(&fakeReader{}, writer, nil)
	saved, err := svc.SaveUser(context.Background(), UserForm{Username: "First"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.RowIndex != 2 {
		t.Fatalf("expected row 2, got %d", saved.RowIndex)
	}
}

func TestEditUserWritesUpdate(t *testing.T) {
	writer := &fakeWriter{}
	svc := newTestService(&fakeReader{table: sampleTable()}, writer, nil)
	saved, err := svc.SaveUser(context.Background(), UserForm{Username: "Bobby", Department: "Ops", Role: "Admin"}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.RowIndex != 4 || saved.Role != RoleAdmin {
		t.Fatalf("unexpected saved user %+v", saved)
	}
	req := writer.requests[0]
	if req.Action != sheets.ActionUpdate || req.RowIndex != 4 {
		t.Fatalf("unexpected request %+v", req)
	}
	if got := req.RowData.([]string)[3]; got != "Bobby" {
		t.Fatalf("unexpected username column %q", got)
	}
}

func TestSaveUserRollsBackOnFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("offline")}
	scheduler := &fakeScheduler{}
	svc := newTestService(&fakeReader{table: sampleTable()}, writer, scheduler)
	before, _ := svc.List(context.Background(), "")

	if _, err := svc.SaveUser(context.Background(), UserForm{Username: "Dana"}, 0); err == nil {
		t.Fatal("expected error")
	}
	after, _ := svc.List(context.Background(), "")
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("state not restored: %+v", after)
	}
	if len(scheduler.jobs) != 0 {
		t.Fatal("failed save must not schedule a reconcile")
	}
}

func TestSaveUserValidation(t *testing.T) {
	svc := newTestService(&fakeReader{table: sampleTable()}, &fakeWriter{}, nil)
	if _, err := svc.SaveUser(context.Background(), UserForm{Username: " "}, 0); !errors.Is(err, ErrUsernameRequired) {
		t.Fatalf("expected ErrUsernameRequired, got %v", err)
	}
	if _, err := svc.SaveUser(context.Background(), UserForm{Username: "x", Role: "owner"}, 0); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.SaveUser(context.Background(), UserForm{Username: "x"}, 99); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDepartmentsAndGivenBy(t *testing.T) {
	svc := newTestService(&fakeReader{table: sampleTable()}, &fakeWriter{}, nil)
	if _, err := svc.AddDepartment("Finance"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddDepartment("Sales"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	depts, err := svc.Departments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Department{{"Sales", 2}, {"Ops", 1}, {"Finance", 0}}
	if !reflect.DeepEqual(depts, want) {
		t.Fatalf("unexpected departments %+v", depts)
	}
	givenBy, _ := svc.GivenBy(context.Background())
	if !reflect.DeepEqual(givenBy, []string{"Ravi", "Meera"}) {
		t.Fatalf("unexpected given-by list %v", givenBy)
	}
}

func TestRenameDepartmentLocalOnly(t *testing.T) {
	writer := &fakeWriter{}
	svc := newTestService(&fakeReader{table: sampleTable()}, writer, nil)
	result, err := svc.RenameField(context.Background(), FieldDepartment, "Sales", "Revenue", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Affected != 2 || result.Persisted {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(writer.requests) != 0 {
		t.Fatal("local rename must not write")
	}
	depts, _ := svc.Departments(context.Background())
	if depts[0].Name != "Revenue" || depts[0].UserCount != 2 {
		t.Fatalf("unexpected departments %+v", depts)
	}
}

func TestRenamePersistKeepsWrittenRowsOnFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("quota"), failAt: 2}
	scheduler := &fakeScheduler{}
	svc := newTestService(&fakeReader{table: sampleTable()}, writer, scheduler)

	_, err := svc.RenameField(context.Background(), FieldGivenBy, "Ravi", "Ravi K", true)
	var partial *PartialRenameError
	if !errors.As(err, &partial) || !reflect.DeepEqual(partial.Rows, []int{3}) {
		t.Fatalf("expected a partial rename of row 3, got %v", err)
	}
	if len(writer.requests) != 2 {
		t.Fatalf("expected writes to stop at the failure, got %d", len(writer.requests))
	}
	alice, _ := svc.User(context.Background(), 3)
	bob, _ := svc.User(context.Background(), 4)
	if alice.GivenBy != "Ravi K" || bob.GivenBy != "Ravi" {
		t.Fatalf("local rows should match the sheet, got %q and %q", alice.GivenBy, bob.GivenBy)
	}
	if len(scheduler.jobs) != 1 {
		t.Fatalf("expected a reconcile to be scheduled, got %d", len(scheduler.jobs))
	}
}

func TestRenamePersistFirstWriteFailureRollsBack(t *testing.T) {
	writer := &fakeWriter{err: errors.New("quota"), failAt: 1}
	scheduler := &fakeScheduler{}
	svc := newTestService(&fakeReader{table: sampleTable()}, writer, scheduler)

	_, err := svc.RenameField(context.Background(), FieldGivenBy, "Ravi", "Ravi K", true)
	var partial *PartialRenameError
	if err == nil || errors.As(err, &partial) {
		t.Fatalf("expected a plain failure, got %v", err)
	}
	givenBy, _ := svc.GivenBy(context.Background())
	if givenBy[0] != "Ravi" {
		t.Fatalf("rename should be undone, got %v", givenBy)
	}
	if len(scheduler.jobs) != 0 {
		t.Fatal("nothing reached the sheet, so no reconcile is needed")
	}
}

func TestRenameRejectsEmptyName(t *testing.T) {
	svc := newTestService(&fakeReader{table: sampleTable()}, &fakeWriter{}, nil)
	if _, err := svc.RenameField(context.Background(), FieldDepartment, "Sales", "  ", false); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(&fakeReader{table: sampleTable()}, &fakeWriter{}, nil)
	u, err := svc.Authenticate(context.Background(), "alice", "pw1")
	if err != nil || u.Username != "Alice" {
		t.Fatalf("expected Alice, got %+v (%v)", u, err)
	}
	if _, err := svc.Authenticate(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody", "pw1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestUserByRow(t *testing.T) {
	svc := newTestService(&fakeReader{table: sampleTable()}, &fakeWriter{}, &fakeScheduler{})
	u, err := svc.User(context.Background(), 6)
	if err != nil || u.Username != "Malik" {
		t.Fatalf("expected Malik on row 6, got %+v (%v)", u, err)
	}
	if _, err := svc.User(context.Background(), 5); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for the blank row, got %v", err)
	}
}
