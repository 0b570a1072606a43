package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sheetconsole/internal/domain/dates"
	"sheetconsole/internal/domain/syncstate"
	"sheetconsole/internal/platform/sheets"
)

var (
	ErrNoTasksSelected = errors.New("select at least one task")
	ErrDatesRequired   = errors.New("select both leave start and end dates")
	ErrInvalidDate     = errors.New("dates must be YYYY-MM-DD")
	ErrDateOrder       = errors.New("leave start date cannot be after end date")
	ErrAssigneeMissing = errors.New("assignee is required")
)

type Service struct {
	// UniqueReader serves the UNIQUE tab (gviz); ChecklistReader serves the
	// Checklist tab through the script endpoint.
	UniqueReader    sheets.Reader
	ChecklistReader sheets.Reader
	Writer          sheets.Writer
	UniqueSheet     string
	ChecklistSheet  string
	Now             func() time.Time

	unique    *syncstate.Store[UniqueTask]
	checklist *syncstate.Store[ChecklistTask]

	mu       sync.Mutex
	assignee string
}

func NewService(uniqueReader, checklistReader sheets.Reader, writer sheets.Writer, uniqueSheet, checklistSheet string) *Service {
	return &Service{
		UniqueReader:    uniqueReader,
		ChecklistReader: checklistReader,
		Writer:          writer,
		UniqueSheet:     uniqueSheet,
		ChecklistSheet:  checklistSheet,
		Now:             time.Now,
		unique:          syncstate.New[UniqueTask](),
		checklist:       syncstate.New[ChecklistTask](),
	}
}

func (s *Service) RefreshUnique(ctx context.Context) error {
	ticket := s.unique.BeginFetch()
	table, err := s.UniqueReader.ReadTable(ctx, s.UniqueSheet)
	if err != nil {
		return fmt.Errorf("read unique tasks: %w", err)
	}
	s.unique.ApplyFetch(ticket, ProjectUniqueTasks(table))
	return nil
}

// UniqueTasks returns the filtered, per-assignee deduplicated task list. The
// tab is read on first use and again only when refresh is set.
func (s *Service) UniqueTasks(ctx context.Context, filter string, refresh bool) ([]UniqueTask, error) {
	if refresh || !s.unique.Loaded() {
		if err := s.RefreshUnique(ctx); err != nil {
			return nil, err
		}
	}
	return FilterUniqueTasks(s.unique.Items(), filter), nil
}

// Checklist reads the Checklist tab for one assignee and narrows it to the
// range. The latest assignee's rows are kept for display; an older request
// that finishes late still returns its own rows but does not replace them.
func (s *Service) Checklist(ctx context.Context, assignee string, r DateRange) ([]ChecklistTask, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, ErrAssigneeMissing
	}
	ticket := s.checklist.BeginFetch()
	s.mu.Lock()
	s.assignee = assignee
	s.mu.Unlock()

	table, err := s.ChecklistReader.ReadTable(ctx, s.ChecklistSheet)
	if err != nil {
		return nil, fmt.Errorf("read checklist: %w", err)
	}
	items := ProjectChecklist(table, assignee)
	if !s.checklist.ApplyFetch(ticket, items) {
		slog.Debug("checklist fetch superseded", "assignee", assignee)
	}
	return FilterByRange(items, r), nil
}

// Current returns the checklist rows last loaded and whose they are.
func (s *Service) Current() (string, []ChecklistTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignee, s.checklist.Items()
}

// SubmitLeave writes a leave remark onto the selected checklist rows that
// fall inside the leave dates. The request is validated before anything is
// read or written.
func (s *Service) SubmitLeave(ctx context.Context, req LeaveRequest) (LeaveResult, error) {
	start, end, err := validateLeave(req)
	if err != nil {
		return LeaveResult{}, err
	}

	tasks, err := s.Checklist(ctx, req.Assignee, DateRange{Start: start, End: end})
	if err != nil {
		return LeaveResult{}, err
	}
	remarks := LeaveRemark(start, end)
	items := BuildLeaveItems(tasks, req.RowIndexes, remarks, s.Now())
	if len(items) == 0 {
		return LeaveResult{}, ErrNoTasksSelected
	}

	if _, err := s.Writer.Write(ctx, sheets.WriteRequest{
		Action:    sheets.ActionUpdateTaskData,
		SheetName: s.ChecklistSheet,
		RowData:   items,
	}); err != nil {
		return LeaveResult{}, err
	}
	return LeaveResult{Submitted: len(items), Remarks: remarks, Items: items}, nil
}

func validateLeave(req LeaveRequest) (time.Time, time.Time, error) {
	if strings.TrimSpace(req.Assignee) == "" {
		return time.Time{}, time.Time{}, ErrAssigneeMissing
	}
	if len(req.RowIndexes) == 0 {
		return time.Time{}, time.Time{}, ErrNoTasksSelected
	}
	if strings.TrimSpace(req.StartDate) == "" || strings.TrimSpace(req.EndDate) == "" {
		return time.Time{}, time.Time{}, ErrDatesRequired
	}
	start, err := time.ParseInLocation(dates.ISOLayout, strings.TrimSpace(req.StartDate), time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}
	end, err := time.ParseInLocation(dates.ISOLayout, strings.TrimSpace(req.EndDate), time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrDateOrder
	}
	return start, end, nil
}

func LeaveRemark(start, end time.Time) string {
	return "Leave: " + start.Format(dates.DisplayLayout) + " to " + end.Format(dates.DisplayLayout)
}

// BuildLeaveItems turns the selected rows among tasks into updateTaskData
// entries stamped with now.
func BuildLeaveItems(tasks []ChecklistTask, rowIndexes []int, remarks string, now time.Time) []LeaveItem {
	selected := make(map[int]bool, len(rowIndexes))
	for _, idx := range rowIndexes {
		selected[idx] = true
	}
	actual := dates.Timestamp(now)
	var items []LeaveItem
	for _, t := range tasks {
		if !selected[t.RowIndex] {
			continue
		}
		items = append(items, LeaveItem{
			TaskID:     t.TaskID,
			RowIndex:   t.RowIndex,
			Remarks:    remarks,
			Status:     LeaveStatus,
			ActualDate: actual,
		})
	}
	return items
}

