package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/go-chi/chi/v5"
)

type TableService interface {
	CheckIn(ctx context.Context, token string) (tables.Table, error)
	IssueCheckInToken(ctx context.Context, tableID string) (string, error)
	SetTableStatus(ctx context.Context, tableID string, status tables.Status) (tables.Table, error)
}

type TablesHandler struct {
	Service TableService
}

type TableStatusReq struct {
	Status string `json:"status"`
}

type CheckInTokenResp struct {
	TableID string `json:"table_id"`
	Token   string `json:"token"`
}

func (h *TablesHandler) Register(r chi.Router) {
	r.Route("/tables", func(r chi.Router) {
		r.Get("/checkin/{token}", h.checkIn)
		r.With(RequireAdmin).Post("/{id}/token", h.issueToken)
		r.With(RequireAdmin).Patch("/{id}/status", h.setStatus)
	})
}

func (h *TablesHandler) checkIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	t, err := h.Service.CheckIn(ctx, chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TablesHandler) issueToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	tok, err := h.Service.IssueCheckInToken(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckInTokenResp{TableID: id, Token: tok})
}

func (h *TablesHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req TableStatusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	t, err := h.Service.SetTableStatus(ctx, chi.URLParam(r, "id"), tables.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
