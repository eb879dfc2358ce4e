package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/soiree/internal/middleware"
	"github.com/hitoshi/soiree/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	Post(ctx context.Context, name, text string) (model.WallMessage, error)
	List(ctx context.Context) ([]model.WallMessage, error)
}

// MessageHandler はメッセージウォールのHTTPハンドラー。
// 投稿の失敗はすべて200の {ok:false, error} で返し、画面にそのまま表示させる。
type MessageHandler struct {
	service  MessageServiceInterface
	cooldown *middleware.Cooldown
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface, cooldown *middleware.Cooldown) *MessageHandler {
	return &MessageHandler{
		service:  service,
		cooldown: cooldown,
	}
}

type messagesResponse struct {
	OK       bool                `json:"ok"`
	Messages []model.WallMessage `json:"messages"`
}

type postMessageRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// ListMessages は新しい順のメッセージ一覧を返す。
// GET /api/messages
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{OK: true, Messages: msgs})
}

// PostMessage はメッセージを投稿する。
// POST /api/messages
// クールダウンは投稿に成功した場合のみ記録する。
func (h *MessageHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	key := middleware.ClientAddr(r)
	if wait := h.cooldown.Remaining(key); wait > 0 {
		writeFail(w, http.StatusOK, fmt.Sprintf("Doucement 😄 réessaie dans %ds", middleware.RetryAfterSeconds(wait)))
		return
	}

	var req postMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusOK, model.NewInvalidRequestError().Message)
		return
	}

	if _, err := h.service.Post(r.Context(), req.Name, req.Text); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			writeFail(w, http.StatusOK, apiErr.Message)
			return
		}
		slog.Error("failed to post message", slog.String("error", err.Error()))
		writeFail(w, http.StatusOK, model.NewInternalError().Message)
		return
	}

	h.cooldown.Mark(key)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
