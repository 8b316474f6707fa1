package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/circulation-backend/internal/api/httpx"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

type LoanHandler struct {
	Circ *services.CirculationService
}

func NewLoanHandler(circ *services.CirculationService) *LoanHandler {
	return &LoanHandler{Circ: circ}
}

// Issue lends a copy. A student may omit borrower_id to borrow for themselves.
func (h *LoanHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req services.IssueRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadBody(w, err)
		return
	}
	a := actor(r)
	if req.BorrowerID == "" && !a.Staff() {
		req.BorrowerID = a.AccountID
	}
	l, err := h.Circ.IssueBook(r.Context(), a, req)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, l)
}

type collectReq struct {
	Notes     *string `json:"return_notes,omitempty"`
	Condition *string `json:"condition_at_return,omitempty"`
}

func (h *LoanHandler) Collect(w http.ResponseWriter, r *http.Request) {
	var body collectReq
	// the body is optional
	if err := httpx.Decode(r, &body); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteBadBody(w, err)
		return
	}
	l, err := h.Circ.CollectBook(r.Context(), actor(r), services.CollectRequest{
		LoanID:    chi.URLParam(r, "id"),
		Notes:     body.Notes,
		Condition: body.Condition,
	})
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.Circ.GetLoan(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

// List lists loans of ?borrower_id=, defaulting to the caller.
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	borrower := r.URL.Query().Get("borrower_id")
	if borrower == "" {
		borrower = a.AccountID
	}
	ls, err := h.Circ.ListLoansByBorrower(r.Context(), a, borrower, httpx.Page(r))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ls)
}

func (h *LoanHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	ls, err := h.Circ.ListOverdueLoans(r.Context(), actor(r), httpx.Page(r))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ls)
}

func (h *LoanHandler) History(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Circ.History(r.Context(), actor(r), "loan", chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, logs)
}
