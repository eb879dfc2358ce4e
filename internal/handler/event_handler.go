package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"
)

// qrCodeSize はQRコード画像の一辺のピクセル数。
const qrCodeSize = 512

// EventInfo はパーティーの基本情報。
type EventInfo struct {
	Title     string `json:"title"`
	EventDate string `json:"eventDate"`
	MapURL    string `json:"mapUrl"`
	BaseURL   string `json:"-"`
}

// EventHandler はイベント情報とQRコードのHTTPハンドラー。
type EventHandler struct {
	info EventInfo
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(info EventInfo) *EventHandler {
	return &EventHandler{info: info}
}

// Info はタイトル、開始日時、地図URLを返す。
// GET /api/event
func (h *EventHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.info)
}

// QRCode はサイトURLのQRコードをPNGで返す。ダッシュボードに映してゲストに読み取らせる。
// GET /api/qrcode
func (h *EventHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(h.info.BaseURL, qrcode.Medium, qrCodeSize)
	if err != nil {
		slog.Error("failed to encode qr code", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

// Healthz はプロセスの生存確認に応答する。
// GET /healthz
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
