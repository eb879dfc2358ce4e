package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/soiree/internal/metrics"
)

// DefaultCleanupInterval は期限切れエントリのクリーンアップ間隔の既定値。
const DefaultCleanupInterval = 5 * time.Minute

// CooldownConfig はクールダウンの設定を保持する。
type CooldownConfig struct {
	Window          time.Duration    // 同じクライアントの連続操作の最小間隔
	CleanupInterval time.Duration    // 期限切れエントリのクリーンアップ間隔
	Now             func() time.Time // テスト用に差し替え可能な時計
}

// clientLimiter はクライアントごとのリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Cooldown はクライアントアドレスごとのクールダウンを管理する。
// 1クライアントにつきバースト1、Window ごとに1回補充されるrate.Limiterを持つ。
// Remaining で残り時間を確認し、操作が受け付けられた時点で Mark する。
type Cooldown struct {
	config CooldownConfig

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCooldown は新しいCooldownを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewCooldown(config CooldownConfig) *Cooldown {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	c := &Cooldown{
		config:   config,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (c *Cooldown) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Window はクールダウンの長さを返す。
func (c *Cooldown) Window() time.Duration {
	return c.config.Window
}

// Remaining は次の操作が可能になるまでの残り時間を返す。トークンは消費しない。
func (c *Cooldown) Remaining(key string) time.Duration {
	if c.config.Window <= 0 {
		return 0
	}
	now := c.config.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.limiters[key]
	if !ok {
		return 0
	}
	cl.lastAccess = now
	tokens := cl.limiter.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) * float64(c.config.Window))
}

// Mark は操作を記録し、クールダウンを開始する。
func (c *Cooldown) Mark(key string) {
	if c.config.Window <= 0 {
		return
	}
	now := c.config.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: c.newLimiter()}
		c.limiters[key] = cl
	}
	cl.lastAccess = now
	if !cl.limiter.AllowN(now, 1) {
		// 残り時間中に再度記録された場合は、今から改めてWindowを数える
		cl.limiter = c.newLimiter()
		cl.limiter.AllowN(now, 1)
	}
}

// Count は現在管理されているエントリ数を返す。テスト用。
func (c *Cooldown) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

func (c *Cooldown) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(c.config.Window), 1)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (c *Cooldown) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからWindowとCleanupIntervalの長い方の2倍を超えたエントリを削除する。
func (c *Cooldown) cleanup() {
	ttl := max(c.config.Window, c.config.CleanupInterval) * 2
	now := c.config.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, cl := range c.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(c.limiters, key)
		}
	}
}

// RetryAfterSeconds は残り時間を切り上げた秒数を返す。最小1秒。
func RetryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}

// NewCooldownMiddleware は操作前にクールダウンを確認して記録するミドルウェアを返す。
// クールダウン中は429とRetry-Afterヘッダーを返し、後続のハンドラーは呼ばない。
func NewCooldownMiddleware(c *Cooldown, scope string, recorder metrics.Recorder) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientAddr(r)
			if wait := c.Remaining(key); wait > 0 {
				recorder.RecordRateLimited(scope)
				slog.Warn("cooldown active",
					slog.String("client", key),
					slog.String("scope", scope),
				)
				writeCooldownResponse(w, RetryAfterSeconds(wait))
				return
			}
			c.Mark(key)
			next.ServeHTTP(w, r)
		})
	}
}

// writeCooldownResponse は429 Too Many Requestsレスポンスを書き込む。
func writeCooldownResponse(w http.ResponseWriter, retryAfterSec int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]any{
		"ok":         false,
		"error":      "cooldown",
		"retryAfter": retryAfterSec,
	})
}

// ClientAddr はクールダウンのキーとなるクライアントアドレスを返す。
// X-Forwarded-For の先頭、X-Real-IP、RemoteAddr のホスト部の順に参照する。
func ClientAddr(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
