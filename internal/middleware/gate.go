// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// LoginPath はゲートで弾かれたリクエストのリダイレクト先。
const LoginPath = "/login"

// gateExemptPrefixes はパスワードなしでアクセスできるパスの接頭辞。
var gateExemptPrefixes = []string{"/static/", "/favicon", "/api/", "/healthz", "/metrics"}

// TokenVerifier はサイトクッキーの値を検証する。
type TokenVerifier interface {
	Verify(token string) error
}

// NewSiteGateMiddleware は共有パスワードのクッキーを確認するミドルウェアを返す。
// クッキーが無い、または検証に失敗した場合は /login?from=<元のパス> へ302でリダイレクトする。
// 静的ファイル、API、ログイン画面、ヘルスチェック、メトリクスは対象外。
func NewSiteGateMiddleware(cookieName string, verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isGateExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(cookieName)
			if err == nil && cookie.Value != "" && verifier.Verify(cookie.Value) == nil {
				next.ServeHTTP(w, r)
				return
			}

			target := LoginPath + "?" + url.Values{"from": {r.URL.Path}}.Encode()
			http.Redirect(w, r, target, http.StatusFound)
		})
	}
}

func isGateExempt(path string) bool {
	if path == LoginPath {
		return true
	}
	for _, prefix := range gateExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// SafeRedirectTarget はログイン後の戻り先として安全なパスを返す。
// サイト内の絶対パス以外（外部URL、//host など）は "/" に置き換える。
func SafeRedirectTarget(from string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.Contains(from, "\\") {
		return "/"
	}
	if from == LoginPath {
		return "/"
	}
	return from
}
