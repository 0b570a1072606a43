package audithandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sheetconsole/internal/domain/audit"
	"sheetconsole/internal/domain/auth"
	"sheetconsole/internal/transport/http/api"
	"sheetconsole/internal/transport/http/middleware"
	"sheetconsole/internal/transport/http/shared"
)

type Handler struct {
	Service *audit.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Get("/audit/sheet-writes", h.handleListWrites)
}

func (h *Handler) handleListWrites(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if !h.Service.Enabled() {
		api.Fail(w, http.StatusNotFound, "audit_disabled", "write audit requires DATABASE_URL", requestID)
		return
	}
	page := shared.ParsePagination(r, 100, 500)
	query := r.URL.Query()
	filter := audit.Filter{
		Action:    query.Get("action"),
		SheetName: query.Get("sheet"),
		Actor:     query.Get("actor"),
	}
	entries, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list sheet writes", requestID)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	api.Success(w, entries, requestID)
}
