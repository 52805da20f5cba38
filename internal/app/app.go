package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kratos "github.com/ory/kratos-client-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/vidshare/internal/cache"
	"github.com/hitoshi/vidshare/internal/catalog"
	"github.com/hitoshi/vidshare/internal/config"
	"github.com/hitoshi/vidshare/internal/database"
	"github.com/hitoshi/vidshare/internal/events"
	"github.com/hitoshi/vidshare/internal/handler"
	"github.com/hitoshi/vidshare/internal/identity"
	"github.com/hitoshi/vidshare/internal/logger"
	"github.com/hitoshi/vidshare/internal/metrics"
	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/network"
	"github.com/hitoshi/vidshare/internal/repository"
	"github.com/hitoshi/vidshare/internal/security"
	"github.com/hitoshi/vidshare/internal/session"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// プロフィールストアとIdPへの依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. DB接続とマイグレーション
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database schema ready", slog.Uint64("version", uint64(version)))

	// 2. キャッシュとイベント発行
	kv, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	publisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 4. 到達性チェック
	checker, err := newConnectivityChecker(cfg)
	if err != nil {
		return err
	}

	// 5. セッションコンテキストのレジストリ
	profiles := repository.NewCachedProfileRepo(repository.NewPostgresProfileRepo(db), kv, cfg.ProfileCacheTTL)
	factory := newSessionFactory(sessionFactoryDeps{
		Config:   cfg,
		Kratos:   identity.NewKratosClient(cfg.KratosPublicURL, cfg.KratosTimeout),
		Tokens:   identity.NewTokenStore(kv, middleware.ClientCookieLifetime),
		Profiles: profiles,
		Network:  checker,
		Metrics:  collector,
		Events:   publisher,
		Policy:   security.NewProfilePolicy(),
	})
	sessions := session.NewRegistry(factory, session.RegistryConfig{
		IdleTTL:         cfg.SessionIdleTTL,
		CleanupInterval: time.Minute,
	}, collector)
	defer sessions.Close()

	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitCredential),
	)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         logger.Component(slog.Default(), "http"),
		Metrics:        collector,
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
		Cookies: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Sessions:          handler.NewRegistryResolver(sessions),
		Catalog:           catalog.NewSeeded(),
	})

	// 7. HTTPサーバーの起動
	// WriteTimeoutは登録タイムアウトより長くする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: max(cfg.LoginTimeout, cfg.RegisterTimeout) + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// openCache はREDIS_ADDRが設定されていればRedisに、未設定ならインメモリに接続する。
// 返却されるcloseは常に呼び出してよい。
func openCache(ctx context.Context, cfg *config.Config) (cache.Client, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Info("using in-memory cache")
		return cache.NewMemory(), func() {}, nil
	}

	r, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))

	return r, func() {
		if err := r.Close(); err != nil {
			slog.Warn("failed to close redis", slog.String("error", err.Error()))
		}
	}, nil
}

// openPublisher はKAFKA_BROKERSが設定されていればKafkaPublisherを返す。
func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NoopPublisher{}, nil
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.ProfileEventTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	slog.Info("profile events enabled",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("topic", cfg.ProfileEventTopic),
	)
	return p, nil
}

// newConnectivityChecker はIdPホストへの到達性チェッカーを返す。
// CONNECTIVITY_PROBE=falseの場合は常にオンラインとみなす。
func newConnectivityChecker(cfg *config.Config) (network.Checker, error) {
	if !cfg.ConnectivityProbe {
		return network.NewStatic(true), nil
	}
	c, err := network.NewDialChecker(cfg.KratosPublicURL, cfg.ConnectivityTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create connectivity checker: %w", err)
	}
	return c, nil
}

// sessionFactoryDeps はセッションコンテキスト生成に共通する依存。
type sessionFactoryDeps struct {
	Config   *config.Config
	Kratos   *kratos.APIClient
	Tokens   *identity.TokenStore
	Profiles repository.ProfileRepository
	Network  network.Checker
	Metrics  metrics.Recorder
	Events   events.Publisher
	Policy   session.InputPolicy
}

// newSessionFactory はクライアントごとにKratosProviderとManagerを生成するFactoryを返す。
// Providerのセッション監視はManagerの解放時に停止する。
func newSessionFactory(deps sessionFactoryDeps) session.Factory {
	cfg := deps.Config
	base := logger.Component(slog.Default(), "session")

	return func(clientID string) (*session.Manager, func(), error) {
		log := base.With(slog.String("client_id", clientID))

		provider := identity.NewKratosProvider(deps.Kratos, clientID, deps.Tokens, cfg.SessionCheckInterval, log)
		watchCtx, cancel := context.WithCancel(context.Background())
		go provider.Watch(watchCtx)

		m := session.NewManager(session.Deps{
			Provider: provider,
			Profiles: deps.Profiles,
			Network:  deps.Network,
			Metrics:  deps.Metrics,
			Events:   deps.Events,
			Policy:   deps.Policy,
			Logger:   log,
		}, session.Config{
			LoginTimeout:      cfg.LoginTimeout,
			RegisterTimeout:   cfg.RegisterTimeout,
			AvatarSeedBaseURL: cfg.AvatarSeedBaseURL,
		})

		release := func() {
			cancel()
			provider.Close()
		}
		return m, release, nil
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
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
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	hasUser := u.User != nil
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	masked := u.String()
	if hasUser {
		// url.Userはアスタリスクをエスケープするため直接埋め込む
		masked = strings.Replace(masked, "://", "://***@", 1)
	}
	return masked
}
