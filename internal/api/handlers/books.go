package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/circulation-backend/internal/api/httpx"
	"github.com/baharkarakas/circulation-backend/internal/services"
)

type BookHandler struct {
	Catalog *services.CatalogService
	Circ    *services.CirculationService
}

func NewBookHandler(catalog *services.CatalogService, circ *services.CirculationService) *BookHandler {
	return &BookHandler{Catalog: catalog, Circ: circ}
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	bs, err := h.Catalog.ListBooks(r.Context(), httpx.Page(r))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bs)
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.Catalog.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.AddBookRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadBody(w, err)
		return
	}
	b, err := h.Catalog.AddBook(r.Context(), actor(r), req)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

type copiesReq struct {
	TotalCopies int `json:"total_copies"`
}

func (h *BookHandler) SetCopies(w http.ResponseWriter, r *http.Request) {
	var req copiesReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadBody(w, err)
		return
	}
	b, err := h.Catalog.SetTotalCopies(r.Context(), actor(r), chi.URLParam(r, "id"), req.TotalCopies)
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *BookHandler) Loans(w http.ResponseWriter, r *http.Request) {
	ls, err := h.Circ.ListLoansByBook(r.Context(), actor(r), chi.URLParam(r, "id"), httpx.Page(r))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ls)
}

func (h *BookHandler) Audit(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Circ.AuditBook(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}
