// Package app はコマンドライン引数に応じてサーバー・ワーカー・マイグレーションを起動する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/churchdash/internal/auth"
	"github.com/hitoshi/churchdash/internal/config"
	"github.com/hitoshi/churchdash/internal/database"
	"github.com/hitoshi/churchdash/internal/guard"
	"github.com/hitoshi/churchdash/internal/handler"
	"github.com/hitoshi/churchdash/internal/hub"
	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/logger"
	"github.com/hitoshi/churchdash/internal/metrics"
	"github.com/hitoshi/churchdash/internal/middleware"
	"github.com/hitoshi/churchdash/internal/prefs"
	"github.com/hitoshi/churchdash/internal/repository"
	"github.com/hitoshi/churchdash/internal/roles"
	"github.com/hitoshi/churchdash/internal/session"
	"github.com/hitoshi/churchdash/internal/worker/cleanup"
)

const (
	tokenIssuer     = "churchdash"
	pingTimeout     = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.SlogLevel())
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. ロール定義の検証
	registry := roles.Default()
	if err := checkRoles(registry, cfg.StrictRoles); err != nil {
		return err
	}

	// 3. 翻訳カタログと言語設定の保存先
	catalog, err := i18n.LoadEmbedded(cfg.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}
	prefStore, closePrefs, err := newPrefsStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePrefs()

	// 4. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 5. リポジトリと認証サービス
	credRepo := repository.NewPostgresCredentialRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)

	authService := auth.NewService(credRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		BcryptCost:    cfg.BcryptCost,
	})

	// 6. クライアントハブ
	clients := hub.New(authService, profileRepo, slog.Default(),
		hub.Config{IdleTTL: cfg.ClientIdleTTL, CleanupInterval: hub.DefaultConfig().CleanupInterval},
		hub.WithObserver(collector),
		hub.WithStoreOptions(
			session.WithRecorder(collector),
			session.WithDefaultLanguage(catalog.DefaultLanguage()),
		),
	)
	defer clients.Stop()

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		Gatherer:          reg,
		HealthChecker:     db,

		Hub:    clients,
		Tokens: auth.NewTokenSigner(cfg.SessionSecret, tokenIssuer),
		Cookie: middleware.SessionConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		SessionMaxAge: cfg.SessionMaxAge,
		CSRFSecret:    []byte(cfg.SessionSecret),

		Catalog:  catalog,
		Prefs:    prefStore,
		Registry: registry,
		Guard:    guard.New(registry),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 8. HTTPサーバーとプロフィール変更の受信を並行に実行する
	listener := repository.NewProfileListener(cfg.DatabaseURL, slog.Default())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// 受信できなくてもサーバーは継続する。ロール変更は次回のセッション復元で反映される
		if err := listener.Run(gctx, clients); err != nil {
			slog.Error("profile listener stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除を定期実行し、ヘルスチェックとメトリクスを公開する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	job := cleanup.NewCleanupJob(db, slog.Default(), collector)

	r := chi.NewRouter()
	r.Get("/health", handler.NewHealthHandler(db))
	r.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("worker listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.SessionCleanupInterval))
		job.Start(gctx, cfg.SessionCleanupInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down worker...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("worker stopped gracefully")
	return nil
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
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, pingTimeout); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connection established")
	return db, nil
}

// checkRoles はロール定義を検証する。
// strictの場合は不備があれば起動を中止し、そうでなければ警告のみ記録する。
func checkRoles(registry *roles.Registry, strict bool) error {
	err := registry.Validate()
	if err == nil {
		return nil
	}
	if strict {
		return fmt.Errorf("invalid role configuration: %w", err)
	}
	slog.Warn("role configuration has defects", slog.String("error", err.Error()))
	return nil
}

// newPrefsStore はREDIS_URLが設定されていればRedis、なければメモリ上のStoreを返す。
// 返り値の関数で接続を閉じる。
func newPrefsStore(ctx context.Context, cfg *config.Config) (prefs.Store, func(), error) {
	if cfg.RedisURL == "" {
		slog.Info("using in-memory preference store")
		return prefs.NewMemoryStore(prefs.DefaultTTL), func() {}, nil
	}

	rc, err := prefs.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using redis preference store")
	return prefs.NewRedisStore(rc, prefs.DefaultTTL), func() { rc.Close() }, nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
