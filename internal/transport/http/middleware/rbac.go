package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"paie/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// Authorize checks the caller of r against permission and writes the 401,
// 403 or 500 response itself when the check does not pass.
func Authorize(w http.ResponseWriter, r *http.Request, store PermissionStore, permission string) bool {
	reqID := GetRequestID(r.Context())
	user, ok := GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return false
	}
	allowed, err := store.HasPermission(r.Context(), user.RoleName, permission)
	if err != nil {
		slog.Error("permission check failed", "permission", permission, "role", user.RoleName, "error", err, "request_id", reqID)
		api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
		return false
	}
	if !allowed {
		slog.Warn("permission denied", "permission", permission, "role", user.RoleName, "user_id", user.UserID, "request_id", reqID)
		api.FailWithDetails(w, http.StatusForbidden, "forbidden", "insufficient permissions",
			map[string]string{"permission": permission}, reqID)
		return false
	}
	return true
}

func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Authorize(w, r, store, permission) {
				next.ServeHTTP(w, r)
			}
		})
	}
}
