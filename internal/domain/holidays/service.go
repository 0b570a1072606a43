package holidays

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sheetconsole/internal/domain/dates"
	"sheetconsole/internal/domain/syncstate"
	"sheetconsole/internal/platform/sheets"
)

// Cache persists the holiday list so it can be shown before the first read
// of the tab completes.
type Cache interface {
	Load(ctx context.Context, key string, dst any) (bool, error)
	Save(ctx context.Context, key string, value any) error
}

type Service struct {
	Reader sheets.Reader
	Writer sheets.Writer
	Sheet  string
	Cache  Cache

	store *syncstate.Store[Holiday]
}

// NewService seeds the list from cache and keeps the cache in step with
// every later change.
func NewService(ctx context.Context, reader sheets.Reader, writer sheets.Writer, sheet string, cache Cache) *Service {
	s := &Service{
		Reader: reader,
		Writer: writer,
		Sheet:  sheet,
		Cache:  cache,
		store:  syncstate.New[Holiday](),
	}
	if cache == nil {
		return s
	}
	var cached []Holiday
	found, err := cache.Load(ctx, CacheKey, &cached)
	if err != nil {
		slog.Warn("holiday cache load failed", "err", err)
	} else if found {
		s.store.Seed(cached)
	}
	s.store.OnChange(func(items []Holiday) {
		if err := cache.Save(context.Background(), CacheKey, items); err != nil {
			slog.Warn("holiday cache save failed", "err", err)
		}
	})
	return s
}

func (s *Service) List() []Holiday {
	return s.store.Items()
}

func (s *Service) Loaded() bool {
	return s.store.Loaded()
}

func (s *Service) Refresh(ctx context.Context) error {
	ticket := s.store.BeginFetch()
	table, err := s.Reader.ReadTable(ctx, s.Sheet)
	if err != nil {
		return fmt.Errorf("read holidays: %w", err)
	}
	s.store.ApplyFetch(ticket, Project(table))
	return nil
}

// Save adds a holiday, or replaces the one at editIndex when it is set. The
// list changes at once and is restored if the write fails; after a
// successful write the tab is read again.
func (s *Service) Save(ctx context.Context, form Form, editIndex *int) (Holiday, error) {
	form.Date = strings.TrimSpace(form.Date)
	form.Day = strings.TrimSpace(form.Day)
	form.Name = strings.TrimSpace(form.Name)
	if form.Date == "" || form.Day == "" || form.Name == "" {
		return Holiday{}, ErrFieldsRequired
	}
	date, err := dates.ISOToDisplay(form.Date, "-")
	if err != nil {
		return Holiday{}, ErrInvalidDate
	}

	var saved Holiday
	mutate := func(items []Holiday) ([]Holiday, error) {
		if editIndex != nil {
			idx := *editIndex
			if idx < 0 || idx >= len(items) {
				return nil, ErrNotFound
			}
			saved = Holiday{Date: date, Day: form.Day, Name: form.Name, RowIndex: targetRow(items[idx], idx)}
			items[idx] = saved
			return items, nil
		}
		saved = Holiday{Date: date, Day: form.Day, Name: form.Name, RowIndex: nextFreeRow(items)}
		return append(items, saved), nil
	}
	remote := func(ctx context.Context) error {
		_, err := s.Writer.Write(ctx, sheets.WriteRequest{
			Action:    sheets.ActionUpdate,
			SheetName: s.Sheet,
			RowData:   rowData(saved.Date, saved.Day, saved.Name),
			RowIndex:  saved.RowIndex,
		})
		return err
	}
	if err := s.store.Optimistic(ctx, mutate, remote); err != nil {
		return Holiday{}, err
	}

	if err := s.Refresh(ctx); err != nil {
		slog.Warn("holiday refresh after save failed", "err", err)
	}
	return saved, nil
}

// Delete blanks the holiday's sheet row and drops it from the list only once
// the write has succeeded.
func (s *Service) Delete(ctx context.Context, index int) error {
	var row int
	remote := func(ctx context.Context, items []Holiday) error {
		if index < 0 || index >= len(items) {
			return ErrNotFound
		}
		row = targetRow(items[index], index)
		_, err := s.Writer.Write(ctx, sheets.WriteRequest{
			Action:    sheets.ActionUpdate,
			SheetName: s.Sheet,
			RowData:   make([]string, holidayColumns),
			RowIndex:  row,
		})
		return err
	}
	mutate := func(items []Holiday) ([]Holiday, error) {
		for i, h := range items {
			if targetRow(h, i) == row {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return items, nil
	}
	return s.store.Confirmed(ctx, remote, mutate)
}

// targetRow is the sheet row a listed holiday lives on: its own row when
// known, otherwise the position-derived row.
func targetRow(h Holiday, index int) int {
	if h.RowIndex > 0 {
		return h.RowIndex
	}
	return index + 2
}

// nextFreeRow starts at len+2 and skips rows already holding a holiday.
func nextFreeRow(items []Holiday) int {
	occupied := make(map[int]bool, len(items))
	for i, h := range items {
		occupied[targetRow(h, i)] = true
	}
	row := len(items) + 2
	for occupied[row] {
		row++
	}
	return row
}
