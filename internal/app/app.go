// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/duelman/internal/config"
	"github.com/hitoshi/duelman/internal/database"
	"github.com/hitoshi/duelman/internal/dealer"
	gamepkg "github.com/hitoshi/duelman/internal/game"
	"github.com/hitoshi/duelman/internal/handler"
	"github.com/hitoshi/duelman/internal/logger"
	"github.com/hitoshi/duelman/internal/match"
	"github.com/hitoshi/duelman/internal/metrics"
	"github.com/hitoshi/duelman/internal/middleware"
	queuepkg "github.com/hitoshi/duelman/internal/queue"
	"github.com/hitoshi/duelman/internal/repository"
	"github.com/hitoshi/duelman/internal/worker/cleanup"
	"github.com/hitoshi/duelman/internal/worker/janitor"
	"github.com/hitoshi/duelman/internal/worker/matchmaker"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込んだ上で環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. ローカル開発用の.envを読み込む（存在しなくてもよい）
	_ = godotenv.Load()

	// 3. 環境変数から設定を読み込む
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newRateLimiterConfig はreq/min単位の設定値からレートリミッター設定を作る。
func newRateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rlCfg.GeneralBurst = cfg.RateLimitGeneral
	rlCfg.EnqueueRate = rate.Limit(float64(cfg.RateLimitEnqueue) / 60.0)
	rlCfg.EnqueueBurst = cfg.RateLimitEnqueue
	return rlCfg
}

// serveMetrics はPrometheusスクレイプ用のHTTPサーバーをバックグラウンドで起動する。
func serveMetrics(reg *prometheus.Registry, port string) {
	go func() {
		addr := ":" + port
		slog.Info("metrics server starting", slog.String("addr", addr))
		if err := http.ListenAndServe(addr, metrics.SetupMetricsRoute(reg)); err != nil {
			slog.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	queueRepo := repository.NewPostgresQueueRepo(db)
	gameRepo := repository.NewPostgresGameRepo(db)
	cardRepo := repository.NewPostgresCardRepo(db)
	deckRepo := repository.NewPostgresDeckRepo(db)

	// 3. メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	serveMetrics(reg, cfg.MetricsPort)

	// 4. ドメインサービスの初期化
	queueService := queuepkg.NewService(queueRepo, gameRepo, deckRepo)
	gameService := gamepkg.NewService(gameRepo, cardRepo, collector)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(newRateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		QueueService: queueService,
		GameService:  gameService,

		Collector: collector,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、マッチングスケジューラとキュージャニターを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	queueRepo := repository.NewPostgresQueueRepo(db)
	gameRepo := repository.NewPostgresGameRepo(db)
	deckRepo := repository.NewPostgresDeckRepo(db)

	// 3. メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	serveMetrics(reg, cfg.MetricsPort)

	// 4. マッチングサービスの初期化
	matchService := match.NewService(queueRepo, gameRepo, deckRepo, dealer.New())
	matchService.OpeningHandSize = cfg.OpeningHandSize

	scheduler := matchmaker.NewScheduler(matchService, slog.Default(), collector)

	// 5. ジャニターの初期化
	queueJanitor := janitor.NewJanitor(queueRepo, gameRepo, slog.Default(), collector)
	queueJanitor.WaitingTTL = cfg.WaitingTTL
	queueJanitor.MatchedTTL = cfg.MatchedTTL

	// 6. セッションクリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("match_interval", cfg.MatchInterval),
		slog.Duration("sweep_interval", cfg.SweepInterval),
	)

	// ジャニターをバックグラウンドで起動
	go queueJanitor.Start(ctx, cfg.SweepInterval)

	// セッションクリーンアップジョブを日次でバックグラウンド実行
	go func() {
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("session cleanup job failed", slog.String("error", err.Error()))
		}
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("session cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// マッチングスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.MatchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
