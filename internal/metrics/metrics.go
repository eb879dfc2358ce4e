// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス記録のインターフェース。
// ミドルウェアやサービス層から利用する。
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(method string, duration time.Duration)
	RecordSpotifyCall(endpoint string, err error, duration time.Duration)
	RecordMessagePosted()
	RecordRouletteJoin()
	RecordRouletteSpin(participants int)
	RecordRSVP(status string)
	RecordRateLimited(scope string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	spotifyCalls    *prometheus.CounterVec
	spotifyLatency  prometheus.Histogram
	messagesPosted  prometheus.Counter
	rouletteJoins   prometheus.Counter
	rouletteSpins   prometheus.Counter
	spinPoolSize    prometheus.Gauge
	rsvps           *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soiree_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "soiree_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		spotifyCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soiree_spotify_calls_total",
			Help: "Spotify API呼び出し数（エンドポイント・結果別）",
		}, []string{"endpoint", "result"}),
		spotifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "soiree_spotify_latency_seconds",
			Help:    "Spotify API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		messagesPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soiree_messages_posted_total",
			Help: "投稿されたメッセージの合計数",
		}),
		rouletteJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soiree_roulette_joins_total",
			Help: "ルーレットへの参加登録数",
		}),
		rouletteSpins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soiree_roulette_spins_total",
			Help: "ルーレットの抽選回数",
		}),
		spinPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "soiree_roulette_last_spin_participants",
			Help: "直近の抽選の参加者数",
		}),
		rsvps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soiree_rsvp_total",
			Help: "出欠回答数（ステータス別）",
		}, []string{"status"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soiree_rate_limited_total",
			Help: "クールダウンで拒否されたリクエスト数",
		}, []string{"scope"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestDuration,
		c.spotifyCalls,
		c.spotifyLatency,
		c.messagesPosted,
		c.rouletteJoins,
		c.rouletteSpins,
		c.spinPoolSize,
		c.rsvps,
		c.rateLimited,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestDuration(method string, duration time.Duration) {
	c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSpotifyCall はSpotify API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordSpotifyCall(endpoint string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.spotifyCalls.WithLabelValues(endpoint, result).Inc()
	c.spotifyLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordMessagePosted() {
	c.messagesPosted.Inc()
}

func (c *Collector) RecordRouletteJoin() {
	c.rouletteJoins.Inc()
}

// RecordRouletteSpin は抽選回数と抽選時の参加者数を記録する。
func (c *Collector) RecordRouletteSpin(participants int) {
	c.rouletteSpins.Inc()
	c.spinPoolSize.Set(float64(participants))
}

func (c *Collector) RecordRSVP(status string) {
	c.rsvps.WithLabelValues(status).Inc()
}

// RecordRateLimited はクールダウンによる拒否を記録する。scopeは "messages" や "roulette"。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// Nop は何も記録しないRecorder。メトリクスを使わないテストや組み込みで使用する。
type Nop struct{}

func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestDuration(string, time.Duration) {}
func (Nop) RecordSpotifyCall(string, error, time.Duration) {}
func (Nop) RecordMessagePosted() {}
func (Nop) RecordRouletteJoin() {}
func (Nop) RecordRouletteSpin(int) {}
func (Nop) RecordRSVP(string) {}
func (Nop) RecordRateLimited(string) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
