package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"sheetconsole/internal/domain/auth"
	"sheetconsole/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// RequirePermission lets the request through only when the operator's role
// grants permission. A nil store falls back to the built-in role table.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	if store == nil {
		store = auth.StaticPermissions{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
				return
			}

			allowed, err := store.HasPermission(r.Context(), user.RoleName, permission)
			if err != nil {
				slog.Warn("permission check failed", "role", user.RoleName, "permission", permission, "err", err, "requestId", requestID)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", requestID)
				return
			}
			if !allowed {
				api.FailWithDetails(w, http.StatusForbidden, "forbidden", "insufficient permissions",
					map[string]string{"permission": permission, "role": user.RoleName}, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
