package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/soiree/internal/bring"
	"github.com/hitoshi/soiree/internal/config"
	"github.com/hitoshi/soiree/internal/dashboard"
	"github.com/hitoshi/soiree/internal/database"
	"github.com/hitoshi/soiree/internal/filestore"
	"github.com/hitoshi/soiree/internal/handler"
	"github.com/hitoshi/soiree/internal/logger"
	"github.com/hitoshi/soiree/internal/metrics"
	"github.com/hitoshi/soiree/internal/middleware"
	"github.com/hitoshi/soiree/internal/repository"
	"github.com/hitoshi/soiree/internal/roulette"
	"github.com/hitoshi/soiree/internal/rsvp"
	"github.com/hitoshi/soiree/internal/security"
	"github.com/hitoshi/soiree/internal/sitepass"
	"github.com/hitoshi/soiree/internal/spotify"
	"github.com/hitoshi/soiree/internal/wall"
)

// STORAGE_DIR配下のファイル名。
const (
	messagesFile     = "messages.json"
	bringFile        = "qui-ramene.json"
	rouletteFile     = "roulette.json"
	rosterFile       = "presents.txt"
	rosterFallback   = "present.txt"
	refreshTokenFile = "spotify-refresh-token.txt"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 未設定のシークレットは機能を無効にするだけで起動は続ける
	for _, warning := range cfg.Warnings() {
		slog.Warn("feature disabled", slog.String("reason", warning))
	}

	return cfg, nil
}

// server はserveモードで組み立てた依存関係を保持する。
type server struct {
	handler   http.Handler
	closeFns  []func()
	cooldowns []*middleware.Cooldown
}

func (s *server) Close() {
	for _, c := range s.cooldowns {
		c.Stop()
	}
	for i := len(s.closeFns) - 1; i >= 0; i-- {
		s.closeFns[i]()
	}
}

// buildServer はストレージ、サービス、ルーターを組み立てる。
func buildServer(cfg *config.Config) (*server, error) {
	srv := &server{}
	log := slog.Default()

	// 1. RSVP用DB接続（SQLiteの場合はここでディレクトリを作成する）
	db, dialect, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	srv.closeFns = append(srv.closeFns, func() { db.Close() })
	if err := db.Ping(); err != nil {
		srv.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established", slog.String("dialect", string(dialect)))

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			srv.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	roster := repository.NewFileRoster(cfg.StoragePath(rosterFile), cfg.StoragePath(rosterFallback))
	messageRepo := repository.NewJSONMessageRepo(cfg.StoragePath(messagesFile), log)
	bringRepo := repository.NewJSONBringRepo(cfg.StoragePath(bringFile), log, time.Now)
	rouletteRepo := repository.NewJSONRouletteRepo(cfg.StoragePath(rouletteFile), log)
	rsvpRepo := repository.NewSQLRSVPRepo(db, dialect)

	// 4. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()
	guard := security.NewOutboundGuard()
	admin := sitepass.NewAdmin(cfg.AdminCode)

	wallService := wall.NewService(messageRepo, sanitizer, collector, cfg.MessagesMax)
	bringService := bring.NewService(bringRepo, roster, admin, sanitizer)
	rouletteService := roulette.NewService(rouletteRepo, roster, collector)
	rsvpService := rsvp.NewService(rsvpRepo, admin, collector)

	// 5. Spotify（未設定の場合はルートごと無効）
	var (
		spotifyService handler.SpotifyServiceInterface
		musicSource    dashboard.MusicSource
	)
	if cfg.SpotifyEnabled() {
		client := spotify.NewClient(
			spotify.Config{
				ClientID:     cfg.SpotifyClientID,
				ClientSecret: cfg.SpotifyClientSecret,
				RedirectURI:  cfg.SpotifyRedirectURI,
				Scopes:       cfg.SpotifyScopes,
			},
			guard.NewSafeClient(cfg.SpotifyTimeout),
			filestore.NewTokenFile(cfg.StoragePath(refreshTokenFile)),
			log,
			collector,
		)
		spotifyService = client
		musicSource = client
		slog.Info("spotify enabled",
			slog.String("redirect_uri", cfg.SpotifyRedirectURI),
			slog.Bool("connected", client.Connected()),
		)
	}
	dashboardService := dashboard.NewService(musicSource, wallService, rouletteService, log)

	// 6. サイトクッキー
	secret := cfg.SiteCookieSecret
	if secret == "" {
		// パスワード未設定時はログインできないため、使い捨ての鍵で十分
		secret, err = randomSecret()
		if err != nil {
			srv.Close()
			return nil, err
		}
	}
	issuer, err := sitepass.NewIssuer(secret, cfg.SiteCookieMaxAge)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("failed to create site cookie issuer: %w", err)
	}

	// 7. 画面
	mapURL := cfg.MapURL
	if mapURL != "" {
		if err := guard.ValidateURL(mapURL); err != nil {
			slog.Warn("MAP_URL ignored", slog.String("error", err.Error()))
			mapURL = ""
		}
	}
	event := handler.EventInfo{
		Title:     cfg.SiteTitle,
		EventDate: cfg.EventDate,
		MapURL:    mapURL,
		BaseURL:   cfg.BaseURL,
	}
	pages, err := handler.NewPageHandler(event)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("failed to load page templates: %w", err)
	}

	// 8. ルーターの構築
	messageCooldown := middleware.NewCooldown(middleware.CooldownConfig{Window: cfg.MessageCooldown})
	rouletteCooldown := middleware.NewCooldown(middleware.CooldownConfig{Window: cfg.RouletteCooldown})
	srv.cooldowns = append(srv.cooldowns, messageCooldown, rouletteCooldown)

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		SiteCookieName:    cfg.SiteCookieName,
		SiteVerifier:      issuer,
		MessageCooldown:   messageCooldown,
		RouletteCooldown:  rouletteCooldown,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),

		SiteIssuer: issuer,
		AuthConfig: handler.AuthHandlerConfig{
			Password:     cfg.SitePassword,
			CookieName:   cfg.SiteCookieName,
			CookieSecure: cfg.CookieSecure,
		},

		MessageService:   wallService,
		BringService:     bringService,
		RouletteService:  rouletteService,
		RSVPService:      rsvpService,
		SpotifyService:   spotifyService,
		SpotifyConfig:    handler.SpotifyHandlerConfig{CookieSecure: cfg.CookieSecure},
		DashboardService: dashboardService,
		Admin:            admin,

		Event: event,
		Pages: pages,
	}

	srv.handler = middleware.NewLoggingMiddleware(log)(handler.NewRouter(deps))
	return srv, nil
}

// runServe はHTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	srv, err := buildServer(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("base_url", cfg.BaseURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// downが0より大きい場合はその数だけロールバックする。
func runMigrate(cfg *config.Config, down int) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("down", down),
	)

	if down > 0 {
		if err := database.RollbackMigrations(cfg.DatabaseURL, down); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	} else if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
// SQLiteのファイルパスはそのまま返す。
func maskDatabaseURL(url string) string {
	if dialect, _, err := database.ParseURL(url); err == nil && dialect == database.DialectSQLite {
		return url
	}
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate cookie secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
