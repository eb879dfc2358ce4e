package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/soiree/internal/bring"
)

// BringServiceInterface は持ち寄りリストハンドラーが必要とするサービスインターフェース。
type BringServiceInterface interface {
	List(ctx context.Context) (bring.View, error)
	Add(ctx context.Context, label, category string) (bring.View, error)
	Patch(ctx context.Context, in bring.PatchInput) (bring.View, error)
	Delete(ctx context.Context, id, adminCode string) (bring.View, error)
}

// BringHandler は「qui ramène quoi」リストのHTTPハンドラー。
type BringHandler struct {
	service BringServiceInterface
}

// NewBringHandler はBringHandlerを生成する。
func NewBringHandler(service BringServiceInterface) *BringHandler {
	return &BringHandler{service: service}
}

// bringResponse は {items, updatedAt, people, ok:true} を返す。
type bringResponse struct {
	bring.View
	OK bool `json:"ok"`
}

type addItemRequest struct {
	Label    string `json:"label"`
	Category string `json:"category"`
}

// patchItemRequest は部分更新のリクエスト。文字列として送られたフィールドのみ更新する。
type patchItemRequest struct {
	ID         string  `json:"id"`
	AssignedTo *string `json:"assignedTo"`
	Label      *string `json:"label"`
	Category   *string `json:"category"`
	AdminCode  string  `json:"adminCode"`
}

type deleteItemRequest struct {
	ID        string `json:"id"`
	AdminCode string `json:"adminCode"`
}

// List はリストと名簿を返す。
// GET /api/qui-ramene
func (h *BringHandler) List(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bringResponse{View: view, OK: true})
}

// Add は品目を追加する。
// POST /api/qui-ramene
func (h *BringHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	// 解析できないボディは空として扱い、サービス側の検証に任せる
	_ = decodeJSON(w, r, &req)

	view, err := h.service.Add(r.Context(), req.Label, req.Category)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bringResponse{View: view, OK: true})
}

// Patch は担当者の割り当て、または管理者による品名・カテゴリの変更を行う。
// PATCH /api/qui-ramene
func (h *BringHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req patchItemRequest
	_ = decodeJSON(w, r, &req)

	view, err := h.service.Patch(r.Context(), bring.PatchInput{
		ID:         req.ID,
		AssignedTo: req.AssignedTo,
		Label:      req.Label,
		Category:   req.Category,
		AdminCode:  req.AdminCode,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bringResponse{View: view, OK: true})
}

// Delete は品目を削除する。管理者のみ。
// DELETE /api/qui-ramene
func (h *BringHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteItemRequest
	_ = decodeJSON(w, r, &req)

	view, err := h.service.Delete(r.Context(), req.ID, req.AdminCode)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bringResponse{View: view, OK: true})
}
