package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/vidshare/internal/metrics"
	"github.com/hitoshi/vidshare/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ミドルウェア依存
	Cookies           middleware.CookieConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// セッションコンテキスト
	Sessions SessionResolver

	// 動画カタログ
	Catalog CatalogService
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Client → Logging → CSRF → RateLimit(General)
//
// /health と /metrics はクライアントCookieを発行しないよう、チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.Sessions)
	profileHandler := NewProfileHandler(deps.Sessions)
	videoHandler := NewVideoHandler(deps.Catalog)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewClientMiddleware(deps.Cookies))
		r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
		r.Use(middleware.NewCSRFMiddleware(deps.Cookies))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.Get("/state", authHandler.State)
			r.Method(http.MethodGet, "/csrf", middleware.NewCSRFTokenHandler(deps.Cookies))

			// 認証情報を送るルートは専用のレート制限を追加
			r.With(deps.RateLimiter.CredentialMiddleware()).Post("/login", authHandler.Login)
			r.With(deps.RateLimiter.CredentialMiddleware()).Post("/register", authHandler.Register)
			r.Post("/logout", authHandler.Logout)
		})

		// プロフィール（要認証）
		r.Route("/api/profile", func(r chi.Router) {
			r.Use(RequireAuth(deps.Sessions))
			r.Get("/", profileHandler.GetProfile)
			r.Patch("/", profileHandler.UpdateProfile)
		})

		// 動画カタログ
		r.Route("/api/videos", func(r chi.Router) {
			r.Get("/", videoHandler.ListVideos)
			r.Get("/trending", videoHandler.Trending)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", videoHandler.GetVideo)
				r.Get("/recommended", videoHandler.Recommended)
			})
		})

		r.Route("/api/channels/{id}", func(r chi.Router) {
			r.Get("/", videoHandler.GetChannel)
			r.Get("/videos", videoHandler.ChannelVideos)
		})
	})

	return r
}
