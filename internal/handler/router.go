package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/blogadmin/internal/metrics"
	"github.com/hitoshi/blogadmin/internal/middleware"
	"github.com/hitoshi/blogadmin/internal/model"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 監視
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	// TrustProxy がtrueの場合はX-Forwarded-For等からクライアントIPを決定する
	TrustProxy bool

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 管理対象のエンティティ
	Resources []ResourceServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	(RealIP) → Logging → Recovery → SecurityHeaders → CORS → CSRF → Session → RateLimit(General)
//
// RealIPはTrustProxyがtrueの場合のみ。CSRFトークン取得とログインはセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, collector))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)

	// --- 監視用のルート ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/admin", func(r chi.Router) {
		// CSRFトークンの取得はCSRFミドルウェアの外に置く
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			// ログインはIP単位のレート制限のみ
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			// --- 認証が必要なルート ---
			// ミドルウェアスタック: Session → RateLimit(General)
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewSessionMiddleware(deps.UserResolver))
				r.Use(deps.RateLimiter.GeneralMiddleware())

				r.Get("/me", authHandler.Me)
				r.Get("/config", authHandler.Config)

				r.Route("/api", func(r chi.Router) {
					for _, svc := range deps.Resources {
						r.Mount("/"+svc.Name()+"s", NewResourceHandler(svc).Routes())
					}
					r.NotFound(unknownResourceHandler)
				})
			})
		})
	})

	return r
}

// healthHandler はDBへの疎通を確認し、結果を返すハンドラーを生成する。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func unknownResourceHandler(w http.ResponseWriter, r *http.Request) {
	writeAPIErrorResponse(w, http.StatusNotFound, model.NewUnknownResourceError(r.URL.Path))
}
