// Package handler はHasuraアクション・イベントトリガーのHTTPハンドラーを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/metafam/metagame/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	WebhookSecret     string
	RateLimiter       *middleware.RateLimiter

	// アクション
	ProfileService ProfileServiceInterface
	SyncQueue      ProfileSyncQueue

	// トリガー
	RankSync RankRoleSyncInterface

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → WebhookSecret → HasuraSession → RateLimit
//
// /health と /metrics はWebhookシークレットの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	actionHandler := NewActionHandler(deps.ProfileService, deps.SyncQueue)
	triggerHandler := NewTriggerHandler(deps.RankSync)

	// --- 運用エンドポイント ---
	r.Get("/health", Health(deps.DB))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- Hasuraからの呼び出し ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewWebhookSecretMiddleware(deps.WebhookSecret))
		r.Use(middleware.NewHasuraSessionMiddleware())
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/actions/idxCache", func(r chi.Router) {
			r.Post("/", actionHandler.UpdateSingle)
			r.Post("/all", actionHandler.UpdateAll)
		})
		r.Post("/triggers", triggerHandler.Handle)
	})

	return r
}
