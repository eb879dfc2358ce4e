package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/rsvp"
)

// RSVPServiceInterface は出欠ハンドラーが必要とするサービスインターフェース。
type RSVPServiceInterface interface {
	Submit(ctx context.Context, req rsvp.Request) (*model.RSVP, error)
	List(ctx context.Context, adminCode string) (rsvp.Summary, error)
}

// RSVPHandler は出欠回答のHTTPハンドラー。
type RSVPHandler struct {
	service RSVPServiceInterface
}

// NewRSVPHandler はRSVPHandlerを生成する。
func NewRSVPHandler(service RSVPServiceInterface) *RSVPHandler {
	return &RSVPHandler{service: service}
}

type rsvpListResponse struct {
	OK bool `json:"ok"`
	rsvp.Summary
}

// Submit は出欠回答を保存する。
// POST /api/rsvp
func (h *RSVPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req rsvp.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if _, err := h.service.Submit(r.Context(), req); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// List は回答一覧と集計を返す。管理者のみ。
// GET /api/rsvp?adminCode=xxx
func (h *RSVPHandler) List(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.List(r.Context(), r.URL.Query().Get("adminCode"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rsvpListResponse{OK: true, Summary: summary})
}
