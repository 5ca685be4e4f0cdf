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

	"github.com/hitoshi/blogadmin/internal/admin"
	"github.com/hitoshi/blogadmin/internal/auth"
	"github.com/hitoshi/blogadmin/internal/config"
	"github.com/hitoshi/blogadmin/internal/database"
	"github.com/hitoshi/blogadmin/internal/handler"
	"github.com/hitoshi/blogadmin/internal/logger"
	"github.com/hitoshi/blogadmin/internal/metrics"
	"github.com/hitoshi/blogadmin/internal/middleware"
	"github.com/hitoshi/blogadmin/internal/model"
	"github.com/hitoshi/blogadmin/internal/password"
	"github.com/hitoshi/blogadmin/internal/repository"
	"github.com/hitoshi/blogadmin/internal/security"
	"github.com/hitoshi/blogadmin/internal/validation"
	"github.com/hitoshi/blogadmin/internal/worker/cleanup"
)

// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
const dbPingTimeout = 5 * time.Second

// ErrUsage はサブコマンドの引数が不足している場合に返される。
var ErrUsage = errors.New("usage: blogadmin createuser <email> <password>")

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってログレベルを変更する
	logger.SetLevel(cfg.LogLevel)

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

	// createuser は引数を先に検証する
	if cmd == CommandCreateUser && len(args) < 3 {
		return ErrUsage
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

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateUser:
		return runCreateUser(cfg, args[1], args[2])
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// adminServices は管理対象エンティティごとのサービス。
type adminServices struct {
	users    *admin.Service[model.User]
	posts    *admin.Service[model.Post]
	comments *admin.Service[model.Comment]
}

func newAdminServices(db *sql.DB, cfg *config.Config, hasher password.Hasher, collector metrics.MetricsCollector) *adminServices {
	var lookup validation.Lookup = repository.NewPostgresLookup(db)

	return &adminServices{
		users: admin.NewService(
			admin.NewUserResource(hasher, cfg.PasswordMinLength, repository.NewPostgresSessionRepo(db)),
			repository.NewPostgresUserRepo(db), lookup, collector,
		),
		posts: admin.NewService(
			admin.NewPostResource(),
			repository.NewPostgresPostRepo(db), lookup, collector,
		),
		comments: admin.NewService(
			admin.NewCommentResource(),
			repository.NewPostgresCommentRepo(db), lookup, collector,
		),
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	reg, collector := newMetricsRegistry()

	// 3. リポジトリとドメインサービスの初期化
	hasher := password.NewPBKDF2Hasher(cfg.PasswordRounds)
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	authService, err := auth.NewService(userRepo, sessionRepo, hasher, collector, auth.ServiceConfig{
		SessionMaxAge:         cfg.SessionMaxAge,
		SessionRememberMaxAge: cfg.SessionRememberMaxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	services := newAdminServices(db, cfg, hasher, collector)

	// 4. ハンドラーアダプタの構築
	resources := []handler.ResourceServiceInterface{
		handler.NewUserServiceAdapter(services.users),
		handler.NewPostServiceAdapter(services.posts, security.NewBodySanitizer(), repository.NewPostgresCommentRepo(db)),
		handler.NewCommentServiceAdapter(services.comments),
	}

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		UserResolver:      authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			Secret:       []byte(cfg.SessionSecret),
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger:     slog.Default(),
		Metrics:    collector,
		TrustProxy: cfg.TrustProxy,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		Resources: resources,
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

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
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

// newMetricsRegistry はGo・プロセスのメトリクスとアプリケーションのメトリクスを登録したレジストリを返す。
func newMetricsRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newWorkerMetricsServer はワーカーのメトリクスを公開するHTTPサーバーを返す。
func newWorkerMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(gatherer))

	return &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップジョブを定期実行する。
// クリーンアップの件数はWORKER_METRICS_PORTの/metricsで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg, collector := newMetricsRegistry()
	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresSessionRepo(db), collector, slog.Default(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := newWorkerMetricsServer(cfg.WorkerMetricsPort, reg)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server failed",
				slog.String("error", err.Error()),
			)
		}
	}()

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	// コンテキストがキャンセルされるまでブロックする
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker metrics server shutdown failed",
			slog.String("error", err.Error()),
		)
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

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runCreateUser は管理画面にログインするユーザーを作成する。
// 管理画面からの作成と同じ検証とパスワードのハッシュ化を行う。
func runCreateUser(cfg *config.Config, email, plain string) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	hasher := password.NewPBKDF2Hasher(cfg.PasswordRounds)
	services := newAdminServices(db, cfg, hasher, nil)

	user, err := services.users.Create(context.Background(), validation.ChangeSet{
		"email":                 email,
		"password":              plain,
		"password_confirmation": plain,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
