package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/soiree/internal/metrics"
)

// quietPaths はポーリング頻度が高くアクセスログに残さないパス。
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// statusRecorder は最初に書き込まれたステータスコードを覚えておく。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// captureStatus はnextを実行し、応答したステータスコードと処理時間を返す。
// 何も書き込まれなかった場合は200とみなす。
func captureStatus(next http.Handler, w http.ResponseWriter, r *http.Request) (int, time.Duration) {
	start := time.Now()
	sr := &statusRecorder{ResponseWriter: w}
	next.ServeHTTP(sr, r)
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.status, time.Since(start)
}

// levelForStatus は5xxをError、4xxをWarn、それ以外をInfoにする。
func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// NewLoggingMiddleware はリクエストごとに "http_request" の構造化ログを1行出力する。
// 属性は method, path, status, duration_ms, client。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status, elapsed := captureStatus(next, w, r)
			if quietPaths[r.URL.Path] {
				return
			}
			logger.LogAttrs(r.Context(), levelForStatus(status), "http_request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Float64("duration_ms", float64(elapsed)/float64(time.Millisecond)),
				slog.String("client", ClientAddr(r)),
			)
		})
	}
}

// NewMetricsMiddleware はステータスコードと処理時間をRecorderに渡す。
func NewMetricsMiddleware(recorder metrics.Recorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status, elapsed := captureStatus(next, w, r)
			recorder.RecordHTTPStatus(status)
			recorder.RecordRequestDuration(r.Method, elapsed)
		})
	}
}
