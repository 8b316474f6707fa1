package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/circulation-backend/internal/api/handlers"
	"github.com/baharkarakas/circulation-backend/internal/auth"
	"github.com/baharkarakas/circulation-backend/internal/config"
	"github.com/baharkarakas/circulation-backend/internal/metrics"
	"github.com/baharkarakas/circulation-backend/internal/middleware"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

type RouterDeps struct {
	Cfg      config.Config
	TM       *auth.TokenManager
	Accounts *services.AccountService
	Catalog  *services.CatalogService
	Circ     *services.CirculationService
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.HTTP.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	authH := handlers.NewAuthHandler(d.TM, d.Accounts)
	bookH := handlers.NewBookHandler(d.Catalog, d.Circ)
	loanH := handlers.NewLoanHandler(d.Circ)
	accH := handlers.NewAccountHandler(d.Accounts)
	authMW := middleware.NewAuthMiddleware(d.TM)

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- auth ----------
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)

			// ---------- books ----------
			r.Get("/books", bookH.List)
			r.Get("/books/{id}", bookH.Get)
			r.With(middleware.RequireStaff).Post("/books", bookH.Create)
			r.With(middleware.RequireStaff).Put("/books/{id}/copies", bookH.SetCopies)
			r.With(middleware.RequireStaff).Get("/books/{id}/loans", bookH.Loans)
			r.With(middleware.RequireStaff).Get("/books/{id}/audit", bookH.Audit)

			// ---------- loans ----------
			r.Post("/loans", loanH.Issue)
			r.Get("/loans", loanH.List)
			r.With(middleware.RequireStaff).Get("/loans/overdue", loanH.Overdue)
			r.Get("/loans/{id}", loanH.Get)
			r.With(middleware.RequireStaff).Get("/loans/{id}/history", loanH.History)
			r.Post("/loans/{id}/collect", loanH.Collect)

			// ---------- accounts ----------
			r.Get("/accounts/{id}", accH.Get)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff)
				r.Get("/accounts", accH.List)
				r.Post("/accounts/{id}/approve", accH.Transition(d.Accounts.ApproveAccount))
				r.Post("/accounts/{id}/reject", accH.Transition(d.Accounts.RejectAccount))
				r.Post("/accounts/{id}/deactivate", accH.Transition(d.Accounts.DeactivateAccount))
				r.Post("/accounts/{id}/reactivate", accH.Transition(d.Accounts.ReactivateAccount))
			})
		})
	})

	return r
}
