package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// responseHeaders は全レスポンスに付ける固定ヘッダー。
// 画面はQRコードから開かれるスマートフォン向けなので、端末の権限はすべて拒否する。
var responseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "same-origin"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
}

// NewSecurityHeadersMiddleware は固定のセキュリティヘッダーを付与する。
// ダッシュボードは数秒おきにポーリングされるため、/api/ の応答はキャッシュさせない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range responseHeaders {
				h.Set(kv[0], kv[1])
			}
			if strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRecoveryMiddleware はハンドラー内のpanicを500のJSONレスポンスに変換する。
// http.ErrAbortHandler は接続を切るための合図なので再度panicさせる。
func NewRecoveryMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer recoverRequest(w, r)
			next.ServeHTTP(w, r)
		})
	}
}

func recoverRequest(w http.ResponseWriter, r *http.Request) {
	rec := recover()
	if rec == nil {
		return
	}
	if rec == http.ErrAbortHandler {
		panic(rec)
	}
	slog.Error("handler panic",
		slog.Any("panic", rec),
		slog.String("route", r.Method+" "+r.URL.Path),
		slog.String("client", ClientAddr(r)),
		slog.String("stack", string(debug.Stack())),
	)
	WriteInternalServerError(w)
}
