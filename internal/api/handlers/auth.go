package handlers

import (
	"net/http"
	"time"

	"github.com/baharkarakas/circulation-backend/internal/api/httpx"
	"github.com/baharkarakas/circulation-backend/internal/auth"
	"github.com/baharkarakas/circulation-backend/internal/models"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

type AuthHandler struct {
	TM       *auth.TokenManager
	Accounts *services.AccountService
}

func NewAuthHandler(tm *auth.TokenManager, accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{TM: tm, Accounts: accounts}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresIn    int64          `json:"expires_in"` // seconds
	Account      models.Account `json:"account"`
}

// Register creates a pending account; borrowing waits for staff approval.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadBody(w, err)
		return
	}
	a, err := h.Accounts.Register(r.Context(), req)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadBody(w, err)
		return
	}
	a, err := h.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	h.issue(w, a)
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh re-reads the account so a role change takes effect on the next pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := httpx.Decode(r, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body", "refresh_token required", nil)
		return
	}
	claims, err := h.TM.ParseRefresh(req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid refresh token", nil)
		return
	}
	self := services.Actor{AccountID: claims.AccountID, Role: claims.Role}
	a, err := h.Accounts.GetAccount(r.Context(), self, claims.AccountID)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid refresh token", nil)
		return
	}
	h.issue(w, a)
}

func (h *AuthHandler) issue(w http.ResponseWriter, a models.Account) {
	p, err := h.TM.GeneratePair(a.ID, a.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    int64(time.Until(p.ExpiresAt).Truncate(time.Second).Seconds()),
		Account:      a,
	})
}
