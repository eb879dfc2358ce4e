package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/soiree/internal/dashboard"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	Load(ctx context.Context) dashboard.Data
}

// DashboardHandler はプロジェクター用ダッシュボードのHTTPハンドラー。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

type dashboardResponse struct {
	OK bool `json:"ok"`
	dashboard.Data
}

// Get は音楽・再生状態・メッセージ・ルーレットをまとめて返す。
// 各セクションは個別に既定値へ縮退するため、常に200で応答する。
// GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboardResponse{OK: true, Data: h.service.Load(r.Context())})
}
