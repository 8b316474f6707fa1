package middleware

import (
	"net/http"
	"strings"

	"github.com/baharkarakas/circulation-backend/internal/api/httpx"
	"github.com/baharkarakas/circulation-backend/internal/auth"
)

type AuthMiddleware struct {
	TM *auth.TokenManager
}

func NewAuthMiddleware(tm *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{TM: tm}
}

// Auth requires "Authorization: Bearer <access token>" and stores the caller in the context.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ah := r.Header.Get("Authorization")
		if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "bearer ") {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token", nil)
			return
		}
		claims, err := m.TM.ParseAccess(strings.TrimSpace(ah[len("Bearer "):]))
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid access token", nil)
			return
		}
		ctx := WithUser(r.Context(), UserCtx{AccountID: claims.AccountID, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
