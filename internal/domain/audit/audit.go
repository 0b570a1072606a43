package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"sheetconsole/internal/platform/sheets"
	"sheetconsole/internal/requestctx"
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Entry is one write sent to the script endpoint.
type Entry struct {
	ID           string    `json:"id"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	SheetName    string    `json:"sheetName"`
	RowIndex     int       `json:"rowIndex"`
	Outcome      string    `json:"outcome"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	RequestID    string    `json:"requestId"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Filter struct {
	Action    string
	SheetName string
	Actor     string
}

// Service stores entries in sheet_writes. A nil Service, or one without a
// pool, records nothing.
type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Enabled() bool {
	return s != nil && s.DB != nil
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	if !s.Enabled() {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO sheet_writes (id, actor, action, sheet_name, row_index, outcome, error_message, request_id)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, e.ID, e.Actor, e.Action, e.SheetName, e.RowIndex, e.Outcome, e.ErrorMessage, e.RequestID)
	return err
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Entry, error) {
	if !s.Enabled() {
		return nil, nil
	}
	query, args := buildQuery(filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.SheetName, &e.RowIndex, &e.Outcome, &e.ErrorMessage, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildQuery(filter Filter) (string, []any) {
	query := "SELECT id, actor, action, sheet_name, row_index, outcome, error_message, request_id, created_at FROM sheet_writes WHERE 1=1"
	var args []any
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if filter.SheetName != "" {
		args = append(args, filter.SheetName)
		query += fmt.Sprintf(" AND sheet_name = $%d", len(args))
	}
	if filter.Actor != "" {
		args = append(args, filter.Actor)
		query += fmt.Sprintf(" AND actor = $%d", len(args))
	}
	return query, args
}

// Writer records every write that passes through to Next.
type Writer struct {
	Next sheets.Writer
	Log  *Service
}

func NewWriter(next sheets.Writer, log *Service) *Writer {
	return &Writer{Next: next, Log: log}
}

func (w *Writer) Write(ctx context.Context, req sheets.WriteRequest) (sheets.Result, error) {
	res, err := w.Next.Write(ctx, req)
	if !w.Log.Enabled() {
		return res, err
	}
	entry := Entry{
		Actor:     requestctx.GetActor(ctx),
		Action:    req.Action,
		SheetName: req.SheetName,
		RowIndex:  req.RowIndex,
		Outcome:   OutcomeOK,
		RequestID: requestctx.GetRequestID(ctx),
	}
	if err != nil {
		entry.Outcome = OutcomeFailed
		entry.ErrorMessage = err.Error()
	}
	if recErr := w.Log.Record(context.WithoutCancel(ctx), entry); recErr != nil {
		slog.Warn("sheet write audit failed", "action", req.Action, "sheet", req.SheetName, "err", recErr)
	}
	return res, err
}
