// Package app はアプリケーションの初期化と起動を行う。
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/userapi/internal/config"
	"github.com/hitoshi/userapi/internal/database"
	"github.com/hitoshi/userapi/internal/handler"
	"github.com/hitoshi/userapi/internal/logger"
	"github.com/hitoshi/userapi/internal/metrics"
	"github.com/hitoshi/userapi/internal/middleware"
	"github.com/hitoshi/userapi/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. 設定されたログレベルでログを初期化する
	logger.SetupDefault(w, cfg.LogLevel)

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
			port = "8000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// コネクションプールを構成し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. コネクションプールの構成
	// 最大接続数は常用プールサイズにオーバーフロー分を加えた値
	manager, err := database.NewManager(cfg.DatabaseURL(), database.ManagerConfig{
		MaxOpenConns:    cfg.PoolMaxSize + cfg.MaxOverflow,
		MaxIdleConns:    cfg.PoolMinSize,
		ConnMaxLifetime: cfg.PoolRecycle,
		AcquireTimeout:  cfg.PoolTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer manager.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Ping(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.Int("pool_max_size", cfg.PoolMaxSize),
		slog.Int("max_overflow", cfg.MaxOverflow),
	)

	// 2. 開発環境ではテーブルを自動作成する
	if cfg.IsDevelopment() {
		if err := manager.CreateTables(); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
		slog.Info("database tables ensured")
	}

	// 3. ドメインサービスの初期化
	userService := user.NewService(manager)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. レート制限の構成（本番環境のみ有効）
	var rateLimiter *middleware.ClientRateLimiter
	if cfg.IsProduction() {
		rateLimiter = middleware.NewClientRateLimiter(cfg.RateLimitPerMinute)
		slog.Info("rate limiting enabled",
			slog.Int("requests_per_minute", cfg.RateLimitPerMinute),
		)
	}

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		UserService:   userService,
		HealthChecker: manager,
		Version:       cfg.APIVersion,

		Logger:      slog.Default(),
		Collector:   collector,
		Gatherer:    registry,
		PoolStatser: manager,
		RateLimiter: rateLimiter,
		CORSOrigins: cfg.CORSOrigins,

		Debug: cfg.Debug,
	})

	// 7. HTTPサーバーの起動
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
			slog.String("version", cfg.APIVersion),
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

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	databaseURL := cfg.DatabaseURL()

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(databaseURL)),
	)

	if err := database.RunMigrations(databaseURL); err != nil {
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
