package middleware

import (
	"net/http"

	"github.com/baharkarakas/circulation-backend/internal/api/httpx"
	"github.com/baharkarakas/circulation-backend/internal/models"
)

// RequireRole lets through only callers holding one of roles. It must run after Auth.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := FromCtx(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
				return
			}
			if _, ok := allowed[u.Role]; !ok {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "not permitted for this account", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff is RequireRole for librarians and admins.
var RequireStaff = RequireRole(models.RoleLibrarian, models.RoleAdmin)
