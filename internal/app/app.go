// Package app はサブコマンドごとの依存関係の組み立てと起動を行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/metafam/metagame/internal/ceramic"
	"github.com/metafam/metagame/internal/config"
	"github.com/metafam/metagame/internal/database"
	"github.com/metafam/metagame/internal/discord"
	"github.com/metafam/metagame/internal/handler"
	"github.com/metafam/metagame/internal/idxcache"
	"github.com/metafam/metagame/internal/legacy"
	"github.com/metafam/metagame/internal/logger"
	"github.com/metafam/metagame/internal/metrics"
	"github.com/metafam/metagame/internal/middleware"
	"github.com/metafam/metagame/internal/rankrole"
	"github.com/metafam/metagame/internal/repository"
	"github.com/metafam/metagame/internal/security"
	"github.com/metafam/metagame/internal/seed"
	"github.com/metafam/metagame/internal/worker/refresh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
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
			port = "4000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		if isMigrateDown(args) {
			return runMigrateDown(cfg)
		}
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg, seedPlayerCount(args, cfg.SeedNumPlayers))
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// buildLinkPolicy は設定に応じたアカウント連携ポリシーを返す。
// 公開鍵は環境変数で渡すため、エスケープされた改行（\n）を実際の改行に戻す。
func buildLinkPolicy(cfg *config.Config) (idxcache.LinkPolicy, error) {
	if cfg.LinkPolicy != config.LinkPolicyVerified {
		return idxcache.DestructiveReassignment{}, nil
	}
	pem := strings.ReplaceAll(cfg.LinkAttestationPublicKey, `\n`, "\n")
	policy, err := idxcache.NewVerifiedClaimPolicy(cfg.LinkAttestationIssuer, []byte(pem))
	if err != nil {
		return nil, fmt.Errorf("failed to build link policy: %w", err)
	}
	return policy, nil
}

// buildProfileService はupdateSingleを処理するidxcache.Serviceを組み立てる。
// serveとworkerで共用する。
func buildProfileService(cfg *config.Config, db *sql.DB, collector metrics.MetricsCollector) (*idxcache.Service, error) {
	policy, err := buildLinkPolicy(cfg)
	if err != nil {
		return nil, err
	}

	ceramicClient := ceramic.NewClient(
		&http.Client{Timeout: cfg.ExternalTimeout},
		slog.Default(),
		cfg.CeramicURL,
		ceramic.Definitions{
			ceramic.BasicProfile:    cfg.BasicProfileDefinition,
			ceramic.ExtendedProfile: cfg.ExtendedProfileDefinition,
			ceramic.AlsoKnownAs:     cfg.AlsoKnownAsDefinition,
		},
	)

	// レガシープロフィールは外部設定URLへのアクセスのためSSRF対策済みクライアントを使う
	legacyClient := legacy.NewClient(
		security.NewSSRFGuard().NewSafeClient(cfg.ExternalTimeout),
		slog.Default(),
		cfg.LegacyProfileURL,
	)

	return idxcache.NewService(
		repository.NewPostgresPlayerRepo(db),
		repository.NewPostgresProfileCacheRepo(db),
		repository.NewPostgresAccountRepo(db),
		ceramicClient,
		legacyClient,
		security.NewContentSanitizer(),
		slog.Default(),
		idxcache.WithLinkPolicy(policy),
		idxcache.WithMetrics(collector),
		idxcache.WithAccountConcurrency(cfg.AccountUpsertConcurrency),
	), nil
}

// buildRankSync はplayerRankUpdatedを処理するSynchronizerを組み立てる。
// Discordクライアントは本番環境でのみ生成する。
func buildRankSync(cfg *config.Config, db *sql.DB, collector metrics.MetricsCollector) (*rankrole.Synchronizer, error) {
	var chat rankrole.ChatPlatform
	if cfg.IsProduction() {
		client, err := discord.NewClient(cfg.DiscordBotToken, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("failed to create discord client: %w", err)
		}
		chat = client
	}

	return rankrole.NewSynchronizer(
		cfg.IsProduction(),
		cfg.DiscordGuildID,
		repository.NewPostgresPlayerRepo(db),
		repository.NewPostgresGuildRepo(db),
		chat,
		collector,
		slog.Default(),
	), nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスの初期化
	profileService, err := buildProfileService(cfg, db, collector)
	if err != nil {
		return err
	}
	rankSync, err := buildRankSync(cfg, db, collector)
	if err != nil {
		return err
	}

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitActions))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		WebhookSecret:     cfg.WebhookSecret,
		RateLimiter:       rateLimiter,
		ProfileService:    profileService,
		SyncQueue:         repository.NewPostgresProfileSyncRepo(db),
		RankSync:          rankSync,
		DB:                db,
		MetricsHandler:    metrics.Handler(registry),
	})

	if cfg.WebhookSecret == "" {
		slog.Warn("WEBHOOK_SECRET is not set; action and trigger endpoints are unauthenticated")
	}

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Bool("rank_role_sync", cfg.IsProduction()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
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
// DB接続を開き、プロフィール再同期スケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. 同期サービスの初期化（ワーカーはメトリクスを公開しない）
	profileService, err := buildProfileService(cfg, db, metrics.Nop{})
	if err != nil {
		return err
	}

	// 3. スケジューラの初期化
	scheduler := refresh.NewScheduler(
		repository.NewPostgresProfileSyncRepo(db),
		profileService,
		slog.Default(),
		refresh.Config{
			MaxConcurrency: cfg.RefreshMaxConcurrent,
			BatchSize:      cfg.RefreshBatchSize,
			ProfileTTL:     cfg.ProfileTTL,
		},
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Int("max_concurrent", cfg.RefreshMaxConcurrent),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RefreshInterval)

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

// runMigrateDown はすべてのマイグレーションをロールバックする。
func runMigrateDown(cfg *config.Config) error {
	slog.Warn("rolling back database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	slog.Info("database migrations rolled back")
	return nil
}

// runSeed は本番の上位numPlayers人でローカルDBを初期化する。
func runSeed(cfg *config.Config, numPlayers int) error {
	if cfg.IsProduction() {
		return errors.New("seed must not be run against production")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: cfg.ExternalTimeout}

	var migrator seed.Migrator
	if cfg.SeedAccountMigrationURL != "" {
		migrator = seed.NewAccountMigrator(httpClient, slog.Default(), cfg.SeedAccountMigrationURL)
	}

	seeder := seed.NewSeeder(
		seed.NewProductionSource(httpClient, slog.Default(), cfg.SeedProductionGraphQLURL),
		migrator,
		repository.NewPostgresSeedRepo(db),
		slog.Default(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := seeder.Run(ctx, numPlayers)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	slog.Info("seed completed", slog.Int("players", n))
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
