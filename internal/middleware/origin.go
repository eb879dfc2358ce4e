package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// NewOriginCheckMiddleware は状態変更リクエストの Origin ヘッダーを検証するミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）と Origin ヘッダーの無いリクエストは検証しない。
// Origin がリクエストのホスト、または allowedOrigins のいずれとも一致しない場合は403を返す。
func NewOriginCheckMiddleware(allowedOrigins ...string) func(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" || sameHost(origin, r.Host) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[strings.ToLower(strings.TrimRight(origin, "/"))]; ok {
				next.ServeHTTP(w, r)
				return
			}

			slog.Warn("origin check failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("origin", origin),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"ok":false,"error":"forbidden"}`))
		})
	}
}

// sameHost は Origin のホスト部がリクエストの Host と一致するかを判定する。
func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
