package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/soiree/internal/metrics"
	"github.com/hitoshi/soiree/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	SiteCookieName    string
	SiteVerifier      middleware.TokenVerifier
	MessageCooldown   *middleware.Cooldown
	RouletteCooldown  *middleware.Cooldown
	Metrics           metrics.Recorder
	MetricsHandler    http.Handler

	// ログイン
	SiteIssuer SiteTokenIssuer
	AuthConfig AuthHandlerConfig

	// 機能
	MessageService   MessageServiceInterface
	BringService     BringServiceInterface
	RouletteService  RouletteServiceInterface
	RSVPService      RSVPServiceInterface
	SpotifyService   SpotifyServiceInterface
	SpotifyConfig    SpotifyHandlerConfig
	DashboardService DashboardServiceInterface
	Admin            AdminChecker

	// 画面
	Event EventInfo
	Pages *PageHandler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → CORS → OriginCheck → SiteGate
//
// サイトゲートは画面のみに効き、/api/ と静的ファイルは対象外。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMetricsMiddleware(recorder))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewOriginCheckMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSiteGateMiddleware(deps.SiteCookieName, deps.SiteVerifier))

	authHandler := NewAuthHandler(deps.SiteIssuer, deps.AuthConfig)
	messageHandler := NewMessageHandler(deps.MessageService, deps.MessageCooldown)
	bringHandler := NewBringHandler(deps.BringService)
	rouletteHandler := NewRouletteHandler(deps.RouletteService, deps.Admin)
	rsvpHandler := NewRSVPHandler(deps.RSVPService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)
	eventHandler := NewEventHandler(deps.Event)

	// --- 運用 ---
	r.Get("/healthz", Healthz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 静的ファイルと画面 ---
	r.Handle("/static/*", StaticHandler())
	if deps.Pages != nil {
		for _, path := range deps.Pages.Paths() {
			r.Get(path, deps.Pages.ServeHTTP)
		}
	}

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		r.Get("/event", eventHandler.Info)
		r.Get("/qrcode", eventHandler.QRCode)

		r.Get("/dashboard", dashboardHandler.Get)

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", messageHandler.ListMessages)
			r.Post("/", messageHandler.PostMessage)
		})

		r.Route("/qui-ramene", func(r chi.Router) {
			r.Get("/", bringHandler.List)
			r.Post("/", bringHandler.Add)
			r.Patch("/", bringHandler.Patch)
			r.Delete("/", bringHandler.Delete)
		})

		r.Route("/roulette", func(r chi.Router) {
			// POST /api/roulette/join - 検証より前にクールダウンを記録する
			r.With(middleware.NewCooldownMiddleware(deps.RouletteCooldown, "roulette_join", recorder)).
				Post("/join", rouletteHandler.Join)
			r.Get("/names", rouletteHandler.Names)
			r.Get("/state", rouletteHandler.State)
			r.Post("/spin", rouletteHandler.Spin)
		})

		r.Route("/rsvp", func(r chi.Router) {
			r.Get("/", rsvpHandler.List)
			r.Post("/", rsvpHandler.Submit)
		})

		if deps.SpotifyService != nil {
			spotifyHandler := NewSpotifyHandler(deps.SpotifyService, deps.SpotifyConfig)
			r.Route("/spotify", func(r chi.Router) {
				r.Get("/login", spotifyHandler.Login)
				r.Get("/callback", spotifyHandler.Callback)
				r.Get("/status", spotifyHandler.Status)
				r.Get("/search", spotifyHandler.Search)
				r.Post("/queue", spotifyHandler.Enqueue)
				r.Get("/queue-get", spotifyHandler.QueueGet)
			})
		}
	})

	return r
}
