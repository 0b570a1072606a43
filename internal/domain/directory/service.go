package directory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"sheetconsole/internal/domain/match"
	"sheetconsole/internal/domain/syncstate"
	"sheetconsole/internal/platform/sheets"
)

const JobReconcile = "directory_reconcile"

// Scheduler runs a job once after a delay.
type Scheduler interface {
	After(delay time.Duration, jobType string, run func(context.Context) (any, error))
}

type Service struct {
	Reader         sheets.Reader
	Writer         sheets.Writer
	Sheet          string
	Scheduler      Scheduler
	ReconcileDelay time.Duration

	users *syncstate.Store[User]

	mu         sync.RWMutex
	localDepts []string
}

func NewService(reader sheets.Reader, writer sheets.Writer, sheet string, scheduler Scheduler, reconcileDelay time.Duration) *Service {
	return &Service{
		Reader:         reader,
		Writer:         writer,
		Sheet:          sheet,
		Scheduler:      scheduler,
		ReconcileDelay: reconcileDelay,
		users:          syncstate.New[User](),
	}
}

// Refresh reloads the users tab. A result that lost the race against a newer
// fetch or a write is dropped silently.
func (s *Service) Refresh(ctx context.Context) error {
	ticket := s.users.BeginFetch()
	table, err := s.Reader.ReadTable(ctx, s.Sheet)
	if err != nil {
		return fmt.Errorf("read users: %w", err)
	}
	if !s.users.ApplyFetch(ticket, ProjectUsers(table)) {
		slog.Debug("users fetch superseded", "sheet", s.Sheet)
	}
	return nil
}

func (s *Service) ensureLoaded(ctx context.Context) error {
	if s.users.Loaded() {
		return nil
	}
	return s.Refresh(ctx)
}

func (s *Service) List(ctx context.Context, filter string) ([]User, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return FilterUsers(s.users.Items(), filter), nil
}

// User returns the user on the given sheet row.
func (s *Service) User(ctx context.Context, rowIndex int) (User, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return User{}, err
	}
	for _, u := range s.users.Items() {
		if u.RowIndex == rowIndex {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *Service) Departments(ctx context.Context) ([]Department, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	users := s.users.Items()
	s.mu.RLock()
	names := DepartmentNames(users, s.localDepts)
	s.mu.RUnlock()
	return CountByDepartment(users, names), nil
}

func (s *Service) GivenBy(ctx context.Context) ([]string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return GivenByNames(s.users.Items()), nil
}

// SaveUser adds a user when editRow is 0 and otherwise replaces the user on
// that sheet row. The change is shown immediately and undone if the write
// fails; a successful write is followed by a delayed re-read of the tab.
func (s *Service) SaveUser(ctx context.Context, form UserForm, editRow int) (User, error) {
	form, err := normalizeForm(form)
	if err != nil {
		return User{}, err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return User{}, err
	}

	editing := editRow > 0
	var saved User
	mutate := func(users []User) ([]User, error) {
		if !editing {
			saved = form.toUser(NextRowIndex(users))
			return append(users, saved), nil
		}
		for i := range users {
			if users[i].RowIndex == editRow {
				saved = form.toUser(editRow)
				users[i] = saved
				return users, nil
			}
		}
		return nil, ErrUserNotFound
	}
	remote := func(ctx context.Context) error {
		req := sheets.WriteRequest{
			Action:    sheets.ActionInsert,
			SheetName: s.Sheet,
			RowData:   saved.RowData(),
			Extra:     url.Values{"timestampColumn": {"-1"}},
		}
		if editing {
			req.Action = sheets.ActionUpdate
			req.RowIndex = saved.RowIndex
		}
		_, err := s.Writer.Write(ctx, req)
		return err
	}

	if err := s.users.Optimistic(ctx, mutate, remote); err != nil {
		return User{}, err
	}
	s.scheduleReconcile()
	return saved, nil
}

func (s *Service) scheduleReconcile() {
	if s.Scheduler == nil {
		return
	}
	s.Scheduler.After(s.ReconcileDelay, JobReconcile, func(ctx context.Context) (any, error) {
		return nil, s.Refresh(ctx)
	})
}

// RenameField rewrites a department or given-by name on every matching user.
// Without persist the change stays local and is replaced by the next re-read
// of the tab. With persist each affected row is written back; when a write
// fails the rows that did reach the sheet keep the new name locally, the rest
// are restored, and a re-read is scheduled.
func (s *Service) RenameField(ctx context.Context, field, oldName, newName string, persist bool) (RenameResult, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return RenameResult{}, ErrNameRequired
	}
	if field != FieldDepartment && field != FieldGivenBy {
		return RenameResult{}, ErrInvalidField
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return RenameResult{}, err
	}

	result := RenameResult{Field: field, OldName: oldName, NewName: newName}
	var changed, written []User
	mutate := func(users []User) ([]User, error) {
		users, changed = renameField(users, field, oldName, newName)
		return users, nil
	}
	remote := func(ctx context.Context) error {
		if !persist {
			return nil
		}
		for _, u := range changed {
			if _, err := s.Writer.Write(ctx, sheets.WriteRequest{
				Action:    sheets.ActionUpdate,
				SheetName: s.Sheet,
				RowData:   u.RowData(),
				RowIndex:  u.RowIndex,
				Extra:     url.Values{"timestampColumn": {"-1"}},
			}); err != nil {
				return fmt.Errorf("write row %d: %w", u.RowIndex, err)
			}
			written = append(written, u)
		}
		return nil
	}
	if err := s.users.Optimistic(ctx, mutate, remote); err != nil {
		if len(written) == 0 {
			return RenameResult{}, err
		}
		return RenameResult{}, s.keepWritten(ctx, written, err)
	}

	if field == FieldDepartment {
		s.mu.Lock()
		for i, name := range s.localDepts {
			if name == oldName {
				s.localDepts[i] = newName
			}
		}
		s.mu.Unlock()
	}
	result.Affected = len(changed)
	result.Persisted = persist && len(changed) > 0
	return result, nil
}

// keepWritten puts the rows that reached the sheet back into the restored
// list and schedules a re-read so the rest converges with the sheet.
func (s *Service) keepWritten(ctx context.Context, written []User, cause error) error {
	rows := make([]int, len(written))
	byRow := make(map[int]User, len(written))
	for i, u := range written {
		rows[i] = u.RowIndex
		byRow[u.RowIndex] = u
	}
	restore := func(users []User) ([]User, error) {
		for i, u := range users {
			if w, ok := byRow[u.RowIndex]; ok {
				users[i] = w
			}
		}
		return users, nil
	}
	if err := s.users.Optimistic(ctx, restore, func(context.Context) error { return nil }); err != nil {
		slog.Warn("keep renamed rows failed", "rows", rows, "err", err)
	}
	s.scheduleReconcile()
	slog.Warn("rename partially written", "sheet", s.Sheet, "rows", rows, "err", cause)
	return &PartialRenameError{Rows: rows, Err: cause}
}

// AddDepartment records a department locally until a user is saved with it.
func (s *Service) AddDepartment(name string) (Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Department{}, ErrNameRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.localDepts {
		if existing == name {
			return Department{Name: name}, nil
		}
	}
	s.localDepts = append(s.localDepts, name)
	count := 0
	for _, u := range s.users.Items() {
		if u.Department == name {
			count++
		}
	}
	return Department{Name: name, UserCount: count}, nil
}

// Authenticate checks a sheet user's password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return User{}, err
	}
	for _, u := range s.users.Items() {
		if !match.Equal(u.Username, username) {
			continue
		}
		if u.Password == "" || subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
			return User{}, ErrInvalidCredentials
		}
		return u, nil
	}
	return User{}, ErrInvalidCredentials
}

// SyncStatus reports where the latest user save stands.
func (s *Service) SyncStatus() SyncStatus {
	return SyncStatus{Phase: s.users.Phase(), LastOutcome: s.users.LastOutcome()}
}
