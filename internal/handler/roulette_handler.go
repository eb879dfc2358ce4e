package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/soiree/internal/model"
)

// RouletteServiceInterface はルーレットハンドラーが必要とするサービスインターフェース。
type RouletteServiceInterface interface {
	Join(ctx context.Context, name string) (model.RouletteState, bool, error)
	Spin(ctx context.Context) (model.RouletteState, error)
	State(ctx context.Context) (model.RouletteState, error)
	Names() []string
}

// AdminChecker は管理者コードを照合する。
type AdminChecker interface {
	Enabled() bool
	Allows(code string) bool
}

// RouletteHandler は「誰が飲む？」ルーレットのHTTPハンドラー。
type RouletteHandler struct {
	service RouletteServiceInterface
	admin   AdminChecker
}

// NewRouletteHandler はRouletteHandlerを生成する。
func NewRouletteHandler(service RouletteServiceInterface, admin AdminChecker) *RouletteHandler {
	return &RouletteHandler{
		service: service,
		admin:   admin,
	}
}

type joinRequest struct {
	Name string `json:"name"`
}

type spinRequest struct {
	AdminCode string `json:"adminCode"`
}

type rouletteResponse struct {
	OK       bool                `json:"ok"`
	Roulette model.RouletteState `json:"roulette"`
}

type namesResponse struct {
	OK    bool     `json:"ok"`
	Names []string `json:"names"`
}

// spinResponse は {ok:true, participants, lastSpinAt, lastParticipants} を返す。
type spinResponse struct {
	OK bool `json:"ok"`
	model.RouletteState
}

// Join は参加者を登録する。クールダウンはルーター側のミドルウェアで確認済み。
// POST /api/roulette/join
func (h *RouletteHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		req.Name = ""
	}
	if strings.TrimSpace(req.Name) == "" {
		writeFail(w, http.StatusBadRequest, "missing_name")
		return
	}

	state, _, err := h.service.Join(r.Context(), req.Name)
	if err != nil {
		slog.Error("roulette join failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, okResponse{OK: false})
		return
	}
	writeJSON(w, http.StatusOK, rouletteResponse{OK: true, Roulette: state})
}

// Names は名簿を返す。
// GET /api/roulette/names
func (h *RouletteHandler) Names(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, namesResponse{OK: true, Names: h.service.Names()})
}

// State は現在のルーレット状態を返す。
// GET /api/roulette/state
func (h *RouletteHandler) State(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context())
	if err != nil {
		slog.Error("roulette state failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, okResponse{OK: false})
		return
	}
	writeJSON(w, http.StatusOK, rouletteResponse{OK: true, Roulette: state})
}

// Spin は抽選を行う。ADMIN_CODE が設定されている場合は一致する adminCode が必要。
// POST /api/roulette/spin
func (h *RouletteHandler) Spin(w http.ResponseWriter, r *http.Request) {
	if h.admin != nil && h.admin.Enabled() {
		var req spinRequest
		if err := decodeJSON(w, r, &req); err != nil {
			req.AdminCode = ""
		}
		if !h.admin.Allows(req.AdminCode) {
			writeAPIErrorResponse(w, http.StatusForbidden, model.NewAdminOnlyError())
			return
		}
	}

	state, err := h.service.Spin(r.Context())
	if err != nil {
		slog.Error("roulette spin failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, okResponse{OK: false})
		return
	}
	writeJSON(w, http.StatusOK, spinResponse{OK: true, RouletteState: state})
}
