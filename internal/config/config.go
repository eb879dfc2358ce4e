package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string

	// Storage
	StorageDir  string
	DatabaseURL string
	AutoMigrate bool

	// Site gate
	SitePassword     string
	SiteCookieName   string
	SiteCookieSecret string
	SiteCookieMaxAge time.Duration
	AdminCode        string

	// Cookie
	CookieSecure bool

	// Spotify
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyScopes       []string
	SpotifyRedirectURI  string
	SpotifyTimeout      time.Duration

	// Event
	SiteTitle string
	EventDate string
	MapURL    string

	// Cooldown
	MessageCooldown  time.Duration
	RouletteCooldown time.Duration
	MessagesMax      int

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// rawEnv は環境変数の生の値を保持する。
type rawEnv struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL"    envDefault:"http://localhost:8080"`

	StorageDir  string `env:"STORAGE_DIR"  envDefault:"storage"`
	DatabaseURL string `env:"DATABASE_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	SitePassword     string        `env:"SITE_PASSWORD"`
	SiteCookieName   string        `env:"SITE_PASSWORD_COOKIE" envDefault:"soiree_auth"`
	SiteCookieSecret string        `env:"SITE_COOKIE_SECRET"`
	SiteCookieMaxAge time.Duration `env:"SITE_COOKIE_MAX_AGE"  envDefault:"720h"`
	AdminCode        string        `env:"ADMIN_CODE"`

	SpotifyClientID     string        `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string        `env:"SPOTIFY_CLIENT_SECRET"`
	SpotifyScopes       []string      `env:"SPOTIFY_SCOPES"       envSeparator:" " envDefault:"user-read-playback-state user-modify-playback-state user-read-currently-playing"`
	SpotifyRedirectURI  string        `env:"SPOTIFY_REDIRECT_URI"`
	SpotifyTimeout      time.Duration `env:"SPOTIFY_TIMEOUT"      envDefault:"10s"`

	SiteTitle string `env:"SITE_TITLE" envDefault:"Midnight Vibes"`
	EventDate string `env:"EVENT_DATE" envDefault:"2026-01-24T19:00:00+01:00"`
	MapURL    string `env:"MAP_URL"`

	MessageCooldown  time.Duration `env:"MESSAGE_COOLDOWN"  envDefault:"8s"`
	RouletteCooldown time.Duration `env:"ROULETTE_COOLDOWN" envDefault:"4s"`
	MessagesMax      int           `env:"MESSAGES_MAX"      envDefault:"200"`

	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。
// シークレットが未設定でもエラーにはせず、該当機能が無効になるだけとする（Warningsを参照）。
// 値の形式が不正な場合（数値や期間のパース失敗）はエラーを返す。
func Load() (*Config, error) {
	var raw rawEnv
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if raw.EventDate != "" {
		if _, err := time.Parse(time.RFC3339, raw.EventDate); err != nil {
			return nil, fmt.Errorf("EVENT_DATE must be RFC3339: %w", err)
		}
	}
	if raw.MessagesMax <= 0 {
		return nil, fmt.Errorf("MESSAGES_MAX must be positive: %d", raw.MessagesMax)
	}

	baseURL := strings.TrimRight(raw.BaseURL, "/")

	cfg := &Config{
		ServerPort:          raw.ServerPort,
		BaseURL:             baseURL,
		StorageDir:          raw.StorageDir,
		DatabaseURL:         raw.DatabaseURL,
		AutoMigrate:         raw.AutoMigrate,
		SitePassword:        raw.SitePassword,
		SiteCookieName:      raw.SiteCookieName,
		SiteCookieSecret:    raw.SiteCookieSecret,
		SiteCookieMaxAge:    raw.SiteCookieMaxAge,
		AdminCode:           strings.TrimSpace(raw.AdminCode),
		CookieSecure:        strings.HasPrefix(baseURL, "https://"),
		SpotifyClientID:     raw.SpotifyClientID,
		SpotifyClientSecret: raw.SpotifyClientSecret,
		SpotifyScopes:       raw.SpotifyScopes,
		SpotifyRedirectURI:  raw.SpotifyRedirectURI,
		SpotifyTimeout:      raw.SpotifyTimeout,
		SiteTitle:           raw.SiteTitle,
		EventDate:           raw.EventDate,
		MapURL:              raw.MapURL,
		MessageCooldown:     raw.MessageCooldown,
		RouletteCooldown:    raw.RouletteCooldown,
		MessagesMax:         raw.MessagesMax,
		CORSAllowedOrigin:   raw.CORSAllowedOrigin,
		LogLevel:            raw.LogLevel,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "sqlite://" + filepath.ToSlash(filepath.Join(cfg.StorageDir, "rsvp.db"))
	}
	if cfg.SpotifyRedirectURI == "" {
		cfg.SpotifyRedirectURI = baseURL + "/api/spotify/callback"
	}
	if cfg.SiteCookieSecret == "" && cfg.SitePassword != "" {
		// パスワードを変更すると発行済みのクッキーも無効になる
		sum := sha256.Sum256([]byte("soiree-cookie:" + cfg.SitePassword))
		cfg.SiteCookieSecret = hex.EncodeToString(sum[:])
	}

	return cfg, nil
}

// StoragePath はSTORAGE_DIR配下のファイルパスを返す。
func (c *Config) StoragePath(name string) string {
	return filepath.Join(c.StorageDir, name)
}

// SpotifyEnabled はSpotify連携に必要な設定が揃っているかを返す。
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

// Warnings は未設定のために無効になる機能の一覧を返す。起動時にログ出力する。
func (c *Config) Warnings() []string {
	var warnings []string
	if c.SitePassword == "" {
		warnings = append(warnings, "SITE_PASSWORD is not set: login always fails")
	}
	if c.AdminCode == "" {
		warnings = append(warnings, "ADMIN_CODE is not set: admin actions are disabled")
	}
	if !c.SpotifyEnabled() {
		warnings = append(warnings, "SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET are not set: music queue is disabled")
	} else if reason := redirectURIProblem(c.SpotifyRedirectURI); reason != "" {
		warnings = append(warnings, "SPOTIFY_REDIRECT_URI "+reason+": Spotify login will be rejected")
	}
	return warnings
}

// redirectURIProblem はSpotifyが受け付けないリダイレクトURIの理由を返す。問題が無ければ空文字列。
// httpが許されるのはループバックアドレスのみ。
func redirectURIProblem(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "is not an absolute URL"
	}
	switch u.Scheme {
	case "https":
		return ""
	case "http":
		if ip := net.ParseIP(u.Hostname()); ip != nil && ip.IsLoopback() {
			return ""
		}
		return "uses http on a non-loopback host"
	default:
		return "must use https"
	}
}
