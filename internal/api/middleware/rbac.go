package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/focusdial/internal/models"
)

// RequireRole returns middleware that admits the listed roles. Admins are
// always admitted.
func RequireRole(allowed ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRole(r.Context())
			if role == models.RoleAdmin || (role != "" && slices.Contains(allowed, role)) {
				next.ServeHTTP(w, r)
				return
			}
			jsonForbidden(w)
		})
	}
}

// RequireAdmin is shorthand for RequireRole(RoleAdmin).
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

// RequireAdminOrSelf admits admins and users addressing their own {id}.
func RequireAdminOrSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CanAccess(r.Context(), chi.URLParam(r, "id")) {
			next.ServeHTTP(w, r)
			return
		}
		jsonForbidden(w)
	})
}

// CanAccess reports whether the caller may act on data owned by ownerID:
// the owner itself or an admin.
func CanAccess(ctx context.Context, ownerID string) bool {
	if GetRole(ctx) == models.RoleAdmin {
		return true
	}
	userID := GetUserID(ctx)
	return userID != "" && userID == ownerID
}
