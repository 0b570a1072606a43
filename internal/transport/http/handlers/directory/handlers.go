package directoryhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sheetconsole/internal/domain/auth"
	"sheetconsole/internal/domain/directory"
	"sheetconsole/internal/transport/http/api"
	"sheetconsole/internal/transport/http/middleware"
	"sheetconsole/internal/transport/http/shared"
)

type Handler struct {
	Service *directory.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *directory.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermDirectoryRead, h.Perms)
	write := middleware.RequirePermission(auth.PermDirectoryWrite, h.Perms)

	r.Route("/users", func(r chi.Router) {
		r.With(read).Get("/", h.handleListUsers)
		r.With(write).Post("/", h.handleCreateUser)
		r.With(write).Post("/refresh", h.handleRefresh)
		r.With(read).Get("/sync", h.handleSyncStatus)
		r.With(write).Put("/{rowIndex}", h.handleUpdateUser)
	})
	r.Route("/departments", func(r chi.Router) {
		r.With(read).Get("/", h.handleListDepartments)
		r.With(write).Post("/", h.handleAddDepartment)
		r.With(write).Put("/{name}", h.handleRename)
	})
	r.With(read).Get("/given-by", h.handleListGivenBy)
}

func publicUsers(users []directory.User) []directory.User {
	out := make([]directory.User, len(users))
	for i, u := range users {
		out[i] = u.Public()
	}
	return out
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page := shared.ParsePagination(r, 0, 0)
	api.Success(w, publicUsers(shared.Window(users, page)), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Refresh(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	users, err := h.Service.List(r.Context(), "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, publicUsers(users), middleware.GetRequestID(r.Context()))
}

func (h *Handler) decodeForm(w http.ResponseWriter, r *http.Request) (directory.UserForm, bool) {
	requestID := middleware.GetRequestID(r.Context())
	var form directory.UserForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return form, false
	}
	validator := shared.NewValidator()
	validator.Struct(form)
	if validator.Reject(w, requestID) {
		return form, false
	}
	return form, true
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	user, err := h.Service.SaveUser(r.Context(), form, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, user.Public(), middleware.GetRequestID(r.Context()))
}

// handleUpdateUser keeps the stored password when the form leaves it blank,
// since passwords are never sent to clients.
func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	rowIndex, err := strconv.Atoi(chi.URLParam(r, "rowIndex"))
	if err != nil || rowIndex < 2 {
		api.Fail(w, http.StatusBadRequest, "invalid_row", "rowIndex must be a sheet row of 2 or more", middleware.GetRequestID(r.Context()))
		return
	}
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	if form.Password == "" {
		existing, err := h.Service.User(r.Context(), rowIndex)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		form.Password = existing.Password
	}
	user, err := h.Service.SaveUser(r.Context(), form, rowIndex)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, user.Public(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.Service.Departments(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, depts, middleware.GetRequestID(r.Context()))
}

type departmentRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

func (h *Handler) handleAddDepartment(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Struct(payload)
	if validator.Reject(w, requestID) {
		return
	}
	dept, err := h.Service.AddDepartment(payload.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, dept, requestID)
}

type renameRequest struct {
	Field   string `json:"field" validate:"omitempty,oneof=department givenBy"`
	NewName string `json:"newName" validate:"required,max=120"`
	Persist bool   `json:"persist"`
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload renameRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Struct(payload)
	if validator.Reject(w, requestID) {
		return
	}
	if payload.Field == "" {
		payload.Field = directory.FieldDepartment
	}
	result, err := h.Service.RenameField(r.Context(), payload.Field, nameParam(r), payload.NewName, payload.Persist)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Service.SyncStatus(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListGivenBy(w http.ResponseWriter, r *http.Request) {
	names, err := h.Service.GivenBy(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, names, middleware.GetRequestID(r.Context()))
}

// nameParam returns the {name} segment decoded exactly once. chi matches on
// RawPath when the request has one, which leaves the segment escaped.
func nameParam(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	var partial *directory.PartialRenameError
	switch {
	case errors.As(err, &partial):
		api.FailWithDetails(w, http.StatusBadGateway, "partial_write", partial.Error(), map[string]any{"writtenRows": partial.Rows}, requestID)
	case errors.Is(err, directory.ErrUsernameRequired):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "username", Reason: err.Error()}})
	case errors.Is(err, directory.ErrInvalidRole):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "role", Reason: err.Error()}})
	case errors.Is(err, directory.ErrNameRequired):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "name", Reason: err.Error()}})
	case errors.Is(err, directory.ErrInvalidField):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "field", Reason: err.Error()}})
	case errors.Is(err, directory.ErrUserNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	default:
		shared.FailUpstream(w, requestID, err)
	}
}
