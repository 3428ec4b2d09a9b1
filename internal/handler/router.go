package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/userapi/internal/metrics"
	"github.com/hitoshi/userapi/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ユーザー管理
	UserService UserServiceInterface

	// ヘルスチェック
	HealthChecker HealthChecker
	Version       string

	// ミドルウェア依存
	Logger      *slog.Logger
	Collector   *metrics.Collector
	Gatherer    prometheus.Gatherer
	PoolStatser middleware.PoolStatser
	RateLimiter *middleware.ClientRateLimiter // nilの場合レート制限を無効化
	CORSOrigins []string

	// デバッグモード（予期しないエラーの詳細をレスポンスに含める）
	Debug bool
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → Logging → Recovery → RateLimit → PoolObservation
//
// レート制限はRateLimiterがnilでない場合のみ適用する（本番環境のみ有効）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSOrigins))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, recorderOrNil(deps.Collector)))
	r.Use(middleware.NewRecoveryMiddleware(deps.Debug))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}
	r.Use(middleware.NewPoolObservationMiddleware(deps.PoolStatser, gaugeSetterOrNil(deps.Collector)))

	userHandler := NewUserHandler(deps.UserService, deps.Debug)
	healthHandler := NewHealthHandler(deps.HealthChecker, deps.Version)

	// ヘルスチェック（プール監視ミドルウェア側でログ対象から除外される）
	r.Get("/health", healthHandler.Check)

	// Prometheusメトリクス
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// ユーザー管理
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Get("/", userHandler.List)
		r.Post("/", userHandler.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", userHandler.Get)
			r.Patch("/", userHandler.Update)
			r.Delete("/", userHandler.Delete)
		})
	})

	return r
}

// recorderOrNil は型付きnilがインターフェースのnil判定をすり抜けるのを防ぐ。
func recorderOrNil(c *metrics.Collector) middleware.Recorder {
	if c == nil {
		return nil
	}
	return c
}

func gaugeSetterOrNil(c *metrics.Collector) middleware.PoolGaugeSetter {
	if c == nil {
		return nil
	}
	return c
}
