package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/churchdash/internal/guard"
	"github.com/hitoshi/churchdash/internal/i18n"
	"github.com/hitoshi/churchdash/internal/metrics"
	"github.com/hitoshi/churchdash/internal/middleware"
	"github.com/hitoshi/churchdash/internal/prefs"
	"github.com/hitoshi/churchdash/internal/roles"
)

// SessionHub はルーターが必要とするクライアント管理のインターフェース。
// hub.Hubが実装する。
type SessionHub interface {
	ClientHub
	middleware.ClientResolver
}

// SessionTokens はセッショントークンの発行と検証を行う。
// auth.TokenSignerが実装する。
type SessionTokens interface {
	TokenSigner
	middleware.TokenParser
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer
	HealthChecker     HealthChecker

	// セッション
	Hub           SessionHub
	Tokens        SessionTokens
	Cookie        middleware.SessionConfig
	SessionMaxAge int
	CSRFSecret    []byte

	// 表示
	Catalog  *i18n.Catalog
	Prefs    prefs.Store
	Registry *roles.Registry
	Guard    *guard.Guard
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → Device → Session → Locale
//
// /health と /metrics はセッション解決の前に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	csrfConfig := middleware.CSRFConfig{
		Secret:       deps.CSRFSecret,
		CookieSecure: deps.Cookie.CookieSecure,
		CookieDomain: deps.Cookie.CookieDomain,
	}
	csrf := middleware.NewCSRFMiddleware(csrfConfig)

	authHandler := NewAuthHandler(deps.Hub, deps.Tokens, deps.Guard, AuthHandlerConfig{
		Cookie:        deps.Cookie,
		SessionMaxAge: deps.SessionMaxAge,
	})
	sessionHandler := NewSessionHandler(deps.Registry, deps.Guard)
	localeHandler := NewLocaleHandler(deps.Catalog)
	pageHandler := NewPageHandler(deps.Registry)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewDeviceMiddleware(middleware.DeviceConfig{
			CookieSecure: deps.Cookie.CookieSecure,
			CookieDomain: deps.Cookie.CookieDomain,
		}))
		r.Use(middleware.NewSessionMiddleware(deps.Hub, deps.Tokens, deps.Cookie))
		r.Use(middleware.NewLocaleMiddleware(deps.Catalog, deps.Prefs, logger))

		// 認証ルート
		// サインインと登録はCSRFトークン取得前に呼ばれるため、IP単位のレート制限のみ適用する
		r.Route("/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/signup", authHandler.Signup)
			r.With(csrf).Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// API
		r.Route("/api", func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(csrf)

			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))
			r.Get("/languages", localeHandler.Languages)
			r.Get("/translations", localeHandler.Translations)
			r.Put("/language", sessionHandler.SetLanguage)
			r.Get("/access", sessionHandler.Access)

			r.Group(func(r chi.Router) {
				r.Use(middleware.NewRequireIdentityMiddleware())
				r.Get("/session", sessionHandler.Session)
				r.Get("/navigation", sessionHandler.Navigation)
				r.Patch("/profile", sessionHandler.UpdateProfile)
			})
		})

		// 画面
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(middleware.NewGuardMiddleware(deps.Guard, deps.Metrics))
			r.Get("/", pageHandler.Page)
			r.Get(roles.LoginPath, pageHandler.Page)
			r.Get(roles.ProfilePath, pageHandler.Page)
			r.Get("/{role}/{page}", pageHandler.Page)
		})
	})

	return r
}
