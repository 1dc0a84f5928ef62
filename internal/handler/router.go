package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lunchdraw/internal/metrics"
	"github.com/hitoshi/lunchdraw/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger        *slog.Logger
	HealthChecker HealthChecker
	RateLimiter   *middleware.RateLimiter
	HTTPMetrics   middleware.HTTPMetricsRecorder
	Gatherer      prometheus.Gatherer

	RestaurantSubmitter RestaurantSubmitter
	RandomPicker        RandomPicker
	SessionService      SessionServiceInterface

	// DefaultSessionID は抽選でsessionId省略時に使用するGLOBALセッションID。
	DefaultSessionID int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging →（ユーザー名必須ルートのみ）Username → RateLimit
//
// /health と /metrics はユーザー名ミドルウェアの外に配置する。
// セッション一覧とリセットはX-Usernameを要求しない（元のAPI互換）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))

	restaurantHandler := NewRestaurantHandler(deps.RestaurantSubmitter, deps.RandomPicker, deps.DefaultSessionID)
	sessionHandler := NewSessionHandler(deps.SessionService)

	// --- 運用エンドポイント ---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.Ping(); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- レストラン提出・抽選（X-Username必須）---

	r.Route("/restaurant", func(r chi.Router) {
		r.Use(middleware.NewUsernameMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// POST /restaurant/submit - 提出専用レート制限を追加
		r.With(deps.RateLimiter.SubmitMiddleware()).Post("/submit", restaurantHandler.Submit)
		r.Get("/random", restaurantHandler.PickRandom)
	})

	// --- セッション操作 ---

	r.Route("/session", func(r chi.Router) {
		r.Get("/", sessionHandler.List)
		r.Patch("/{sessionId}/reset", sessionHandler.Reset)

		// 招待のみ実行者の特定が必要
		r.With(
			middleware.NewUsernameMiddleware(),
			deps.RateLimiter.GeneralMiddleware(),
		).Post("/invite", sessionHandler.Invite)
	})

	return r
}
