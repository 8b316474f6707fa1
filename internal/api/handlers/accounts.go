package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/circulation-backend/internal/api/httpx"
	"github.com/baharkarakas/circulation-backend/internal/models"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

type AccountHandler struct {
	Accounts *services.AccountService
}

func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{Accounts: accounts}
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *models.ApprovalStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := models.ApprovalStatus(v)
		status = &s
	}
	as, err := h.Accounts.ListAccounts(r.Context(), actor(r), status, httpx.Page(r))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, as)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.Accounts.GetAccount(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

type transition func(ctx context.Context, actor services.Actor, id string) (models.Account, error)

// Transition serves approve/reject/deactivate/reactivate.
func (h *AccountHandler) Transition(fn transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := fn(r.Context(), actor(r), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteServiceError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, a)
	}
}
