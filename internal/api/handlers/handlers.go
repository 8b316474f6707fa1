package handlers

import (
	"net/http"

	"github.com/baharkarakas/circulation-backend/internal/middleware"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

// actor turns the authenticated caller into the identity passed to services.
func actor(r *http.Request) services.Actor {
	u, _ := middleware.FromCtx(r.Context())
	return services.Actor{AccountID: u.AccountID, Role: u.Role}
}
