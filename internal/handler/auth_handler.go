// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/soiree/internal/sitepass"
)

// SiteTokenIssuer はサイトクッキーに入れるトークンを発行する。
type SiteTokenIssuer interface {
	Issue() (string, error)
	MaxAge() time.Duration
}

// AuthHandlerConfig はログインハンドラーの設定。
type AuthHandlerConfig struct {
	Password     string
	CookieName   string
	CookieSecure bool
}

// AuthHandler は共有パスワードによるログインのHTTPハンドラー。
type AuthHandler struct {
	issuer SiteTokenIssuer
	config AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(issuer SiteTokenIssuer, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		issuer: issuer,
		config: config,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login はパスワードを照合し、一致すればサイトクッキーを設定する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		req.Password = ""
	}

	if !sitepass.CheckPassword(h.config.Password, req.Password) {
		slog.Warn("site login failed")
		writeJSON(w, http.StatusUnauthorized, okResponse{OK: false})
		return
	}

	token, err := h.issuer.Issue()
	if err != nil {
		slog.Error("failed to issue site token", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, okResponse{OK: false})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.issuer.MaxAge().Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Logout はサイトクッキーを削除する。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
