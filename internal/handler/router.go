package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/duelman/internal/metrics"
	"github.com/hitoshi/duelman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// サービス
	QueueService QueueServiceInterface
	GameService  GameServiceInterface

	// メトリクス（nil可）
	Collector metrics.MetricsCollector
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF → Session → RateLimit(General)
//
// ヘルスチェック（/health）は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	queueHandler := NewQueueHandler(deps.QueueService, deps.Collector)
	gameHandler := NewGameHandler(deps.GameService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler)
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// マッチングキュー
		r.Route("/api/queue", func(r chi.Router) {
			// POST /api/queue - キュー参加（参加専用レート制限を追加）
			r.With(deps.RateLimiter.EnqueueMiddleware()).Post("/", queueHandler.Enqueue)
			r.Delete("/", queueHandler.Cancel)
			r.Get("/", queueHandler.MyEntry)
		})

		// ゲームセッション
		r.Route("/api/games", func(r chi.Router) {
			r.Get("/active", gameHandler.MyActiveGame)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/phase", gameHandler.AdvancePhase)
				r.Post("/draw", gameHandler.DrawCard)
				r.Post("/summon", gameHandler.Summon)
			})
		})
	})

	return r
}

// healthHandler はプロセスの生存確認に応答する。
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
