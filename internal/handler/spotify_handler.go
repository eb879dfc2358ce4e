package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/soiree/internal/model"
	"github.com/hitoshi/soiree/internal/spotify"
)

const (
	oauthStateCookie = "spotify_oauth_state"
	queueGetLimit    = 20
)

// SpotifyServiceInterface は音楽キューハンドラーが必要とするサービスインターフェース。
type SpotifyServiceInterface interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) error
	Status(ctx context.Context) spotify.Status
	Search(ctx context.Context, query string, limit int) ([]spotify.Track, error)
	Enqueue(ctx context.Context, uri string) error
	Queue(ctx context.Context) (*spotify.Queue, error)
}

// SpotifyHandlerConfig は音楽キューハンドラーの設定。
type SpotifyHandlerConfig struct {
	CookieSecure bool
}

// SpotifyHandler はSpotify連携と音楽キューのHTTPハンドラー。
type SpotifyHandler struct {
	service SpotifyServiceInterface
	config  SpotifyHandlerConfig
}

// NewSpotifyHandler はSpotifyHandlerを生成する。
func NewSpotifyHandler(service SpotifyServiceInterface, config SpotifyHandlerConfig) *SpotifyHandler {
	return &SpotifyHandler{
		service: service,
		config:  config,
	}
}

// searchItem は検索結果の1件。画像はアルバム画像の3番目（小サイズ）。
type searchItem struct {
	ID     string `json:"id"`
	URI    string `json:"uri"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Image  string `json:"image,omitempty"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type enqueueRequest struct {
	URI string `json:"uri"`
}

type queueTrack struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Image  string `json:"image,omitempty"`
}

type queueGetResponse struct {
	OK        bool         `json:"ok"`
	Currently *queueTrack  `json:"currently"`
	Queue     []queueTrack `json:"queue"`
}

// Login はSpotifyの認可フローを開始する。
// GET /api/spotify/login
func (h *SpotifyHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/spotify",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.AuthorizeURL(state), http.StatusTemporaryRedirect)
}

// Callback は認可コードをリフレッシュトークンに交換し、/musique に戻す。
// GET /api/spotify/callback?code=xxx&state=yyy
func (h *SpotifyHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("spotify oauth state mismatch", slog.String("query_state", state))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid state"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/api/spotify",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing code"})
		return
	}

	if err := h.service.ExchangeCode(r.Context(), code); err != nil {
		slog.Error("spotify token exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Token exchange failed"})
		return
	}

	http.Redirect(w, r, "/musique", http.StatusTemporaryRedirect)
}

// Status は接続状態と再生デバイス名を返す。
// GET /api/spotify/status
func (h *SpotifyHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Status(r.Context()))
}

// Search はトラックを検索する。失敗時も200で空の結果を返す。
// GET /api/spotify/search?q=xxx
func (h *SpotifyHandler) Search(w http.ResponseWriter, r *http.Request) {
	resp := searchResponse{Items: []searchItem{}}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	tracks, err := h.service.Search(r.Context(), q, spotify.SearchLimit)
	if err != nil {
		slog.Warn("spotify search failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, resp)
		return
	}

	for _, t := range tracks {
		resp.Items = append(resp.Items, searchItem{
			ID:     t.ID,
			URI:    t.URI,
			Name:   t.Name,
			Artist: t.ArtistNames(),
			Album:  t.Album.Name,
			Image:  t.ImageURL(2),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Enqueue はトラックをキューに追加する。
// POST /api/spotify/queue
// 形式不正のURIのみ400で、それ以外の失敗は200の {ok:false, error} で返す。
func (h *SpotifyHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	_ = decodeJSON(w, r, &req)

	err := h.service.Enqueue(r.Context(), req.URI)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	case errors.Is(err, spotify.ErrInvalidTrackURI):
		writeFail(w, http.StatusBadRequest, model.NewInvalidTrackURIError().Message)
	case errors.Is(err, spotify.ErrAlreadyQueued):
		writeFail(w, http.StatusOK, model.NewAlreadyQueuedError().Message)
	default:
		slog.Error("spotify enqueue failed", slog.String("error", err.Error()))
		writeFail(w, http.StatusOK, upstreamMessage(err))
	}
}

// QueueGet は再生中のトラックとキューの先頭20件を返す。失敗時も200で空の結果を返す。
// GET /api/spotify/queue-get
func (h *SpotifyHandler) QueueGet(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Queue(r.Context())
	if err != nil {
		slog.Warn("spotify queue failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, queueGetResponse{OK: false, Queue: []queueTrack{}})
		return
	}

	resp := queueGetResponse{OK: true, Queue: []queueTrack{}}
	if q.CurrentlyPlaying != nil {
		resp.Currently = &queueTrack{
			Name:   q.CurrentlyPlaying.Name,
			Artist: q.CurrentlyPlaying.ArtistNames(),
			Image:  q.CurrentlyPlaying.ImageURL(2, 1, 0),
		}
	}
	for i, t := range q.Queue {
		if i >= queueGetLimit {
			break
		}
		resp.Queue = append(resp.Queue, queueTrack{
			ID:     t.ID,
			Name:   t.Name,
			Artist: t.ArtistNames(),
			Image:  t.ImageURL(2, 1, 0),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// upstreamMessage は画面に表示するエラーメッセージを返す。
func upstreamMessage(err error) string {
	var apiErr *spotify.APIError
	if errors.As(err, &apiErr) {
		return model.NewUpstreamError(apiErr.Message).Message
	}
	if errors.Is(err, spotify.ErrNotConnected) {
		return spotify.ErrNotConnected.Error()
	}
	return model.NewUpstreamError("").Message
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
