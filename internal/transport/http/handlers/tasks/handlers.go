package taskshandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sheetconsole/internal/domain/auth"
	"sheetconsole/internal/domain/tasks"
	"sheetconsole/internal/transport/http/api"
	"sheetconsole/internal/transport/http/middleware"
	"sheetconsole/internal/transport/http/shared"
)

const leaveEndpoint = "tasks.leave_transfer"

type Handler struct {
	Service     *tasks.Service
	Perms       middleware.PermissionStore
	Idempotency middleware.IdempotencyStore
}

func NewHandler(service *tasks.Service, perms middleware.PermissionStore, idempotency middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Perms: perms, Idempotency: idempotency}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermTasksRead, h.Perms)
	r.Route("/tasks", func(r chi.Router) {
		r.With(read).Get("/unique", h.handleUniqueTasks)
		r.With(read).Get("/checklist", h.handleChecklist)
		r.With(read).Get("/checklist/current", h.handleCurrentChecklist)
	})
	r.With(middleware.RequirePermission(auth.PermLeaveTransfer, h.Perms)).Post("/leave-transfers", h.handleLeaveTransfer)
}

func (h *Handler) handleUniqueTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	refresh, _ := strconv.ParseBool(query.Get("refresh"))
	items, err := h.Service.UniqueTasks(r.Context(), query.Get("q"), refresh)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleChecklist(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	validator := shared.NewValidator()
	validator.Required("assignee", query.Get("assignee"), "is required")
	var rng tasks.DateRange
	if raw := query.Get("start"); raw != "" {
		rng.Start, _ = validator.Date("start", raw)
	}
	if raw := query.Get("end"); raw != "" {
		rng.End, _ = validator.Date("end", raw)
	}
	validator.DateOrder("start", rng.Start, "end", rng.End)
	if validator.Reject(w, requestID) {
		return
	}

	items, err := h.Service.Checklist(r.Context(), query.Get("assignee"), rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []tasks.ChecklistTask{}
	}
	api.Success(w, items, requestID)
}

type currentChecklist struct {
	Assignee string                `json:"assignee"`
	Items    []tasks.ChecklistTask `json:"items"`
}

// handleCurrentChecklist returns the rows of the last checklist read without
// reading the tab again.
func (h *Handler) handleCurrentChecklist(w http.ResponseWriter, r *http.Request) {
	assignee, items := h.Service.Current()
	if items == nil {
		items = []tasks.ChecklistTask{}
	}
	api.Success(w, currentChecklist{Assignee: assignee, Items: items}, middleware.GetRequestID(r.Context()))
}

// handleLeaveTransfer honours an Idempotency-Key header: a retry with the
// same key and body replays the first result instead of writing again.
func (h *Handler) handleLeaveTransfer(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	var payload tasks.LeaveRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	actor := ""
	if user, ok := middleware.GetUser(r.Context()); ok {
		actor = user.UserID
	}
	key := r.Header.Get("Idempotency-Key")
	hash := middleware.RequestHash(body)
	if key != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), actor, leaveEndpoint, key, hash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), requestID)
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Success(w, stored, requestID)
			return
		}
	}

	result, err := h.Service.SubmitLeave(r.Context(), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if key != "" && h.Idempotency != nil {
		encoded, err := json.Marshal(result)
		if err == nil {
			err = h.Idempotency.Save(r.Context(), actor, leaveEndpoint, key, hash, encoded)
		}
		if err != nil {
			slog.Warn("idempotency save failed", "err", err)
		}
	}
	api.Success(w, result, requestID)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, tasks.ErrAssigneeMissing):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "assignee", Reason: err.Error()}})
	case errors.Is(err, tasks.ErrNoTasksSelected):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "rowIndexes", Reason: err.Error()}})
	case errors.Is(err, tasks.ErrDatesRequired), errors.Is(err, tasks.ErrInvalidDate), errors.Is(err, tasks.ErrDateOrder):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "startDate", Reason: err.Error()}})
	default:
		shared.FailUpstream(w, requestID, err)
	}
}
