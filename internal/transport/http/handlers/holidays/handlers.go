package holidayshandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sheetconsole/internal/domain/auth"
	"sheetconsole/internal/domain/dates"
	"sheetconsole/internal/domain/holidays"
	"sheetconsole/internal/transport/http/api"
	"sheetconsole/internal/transport/http/middleware"
	"sheetconsole/internal/transport/http/shared"
)

type Handler struct {
	Service *holidays.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *holidays.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermHolidaysRead, h.Perms)
	write := middleware.RequirePermission(auth.PermHolidaysWrite, h.Perms)
	r.Route("/holidays", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.With(write).Post("/refresh", h.handleRefresh)
		r.With(middleware.RequirePermission(auth.PermHolidaysExport, h.Perms)).Get("/export", h.handleExport)
		r.With(write).Put("/{index}", h.handleUpdate)
		r.With(write).Delete("/{index}", h.handleDelete)
	})
}

// holidayView adds the YYYY-MM-DD form of the date for edit forms.
type holidayView struct {
	holidays.Holiday
	ISODate string `json:"isoDate"`
}

type listResponse struct {
	Items  []holidayView `json:"items"`
	Loaded bool          `json:"loaded"`
}

func (h *Handler) list() listResponse {
	items := h.Service.List()
	views := make([]holidayView, len(items))
	for i, item := range items {
		views[i] = holidayView{Holiday: item, ISODate: dates.DisplayToISO(item.Date)}
	}
	return listResponse{Items: views, Loaded: h.Service.Loaded()}
}

// handleList serves the cached list and reads the tab first only when nothing
// has been loaded yet.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Loaded() {
		if err := h.Service.Refresh(r.Context()); err != nil {
			if len(h.Service.List()) == 0 {
				h.fail(w, r, err)
				return
			}
			slog.Warn("holiday refresh failed, serving cache", "err", err)
		}
	}
	api.Success(w, h.list(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Refresh(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, h.list(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) decodeForm(w http.ResponseWriter, r *http.Request) (holidays.Form, bool) {
	requestID := middleware.GetRequestID(r.Context())
	var form holidays.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return form, false
	}
	validator := shared.NewValidator()
	validator.Struct(form)
	if form.Date != "" {
		validator.Date("date", form.Date)
	}
	if validator.Reject(w, requestID) {
		return form, false
	}
	return form, true
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	saved, err := h.Service.Save(r.Context(), form, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, saved, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	saved, err := h.Service.Save(r.Context(), form, &index)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, saved, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	index, ok := h.index(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), index); err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, h.list(), middleware.GetRequestID(r.Context()))
}

type exportFormat struct {
	contentType string
	filename    string
	write       func(w http.ResponseWriter, items []holidays.Holiday) error
}

var exportFormats = map[string]exportFormat{
	"csv": {"text/csv; charset=utf-8", "Holidays.csv", func(w http.ResponseWriter, items []holidays.Holiday) error {
		return holidays.ExportCSV(w, items)
	}},
	"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "Holidays.xlsx", func(w http.ResponseWriter, items []holidays.Holiday) error {
		return holidays.ExportXLSX(w, items)
	}},
	"pdf": {"application/pdf", "Holidays.pdf", func(w http.ResponseWriter, items []holidays.Holiday) error {
		return holidays.ExportPDF(w, items)
	}},
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = "csv"
	}
	format, ok := exportFormats[name]
	if !ok {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "format", Reason: "must be one of: csv xlsx pdf"}})
		return
	}
	api.Attachment(w, format.contentType, format.filename)
	if err := format.write(w, h.Service.List()); err != nil {
		slog.Warn("holiday export failed", "format", name, "err", err)
	}
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_index", "index must be a non-negative integer", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return index, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, holidays.ErrFieldsRequired):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "", Reason: err.Error()}})
	case errors.Is(err, holidays.ErrInvalidDate):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "date", Reason: err.Error()}})
	case errors.Is(err, holidays.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	default:
		shared.FailUpstream(w, requestID, err)
	}
}
