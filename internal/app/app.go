package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/vavastore/internal/config"
	"github.com/hitoshi/vavastore/internal/enrich"
	"github.com/hitoshi/vavastore/internal/handler"
	"github.com/hitoshi/vavastore/internal/logger"
	"github.com/hitoshi/vavastore/internal/market"
	"github.com/hitoshi/vavastore/internal/metrics"
	"github.com/hitoshi/vavastore/internal/middleware"
	"github.com/hitoshi/vavastore/internal/retry"
	"github.com/hitoshi/vavastore/internal/security"
	"github.com/hitoshi/vavastore/internal/valorant"
	"github.com/hitoshi/vavastore/internal/worker/warmup"
)

const (
	// shutdownTimeout はグレースフルシャットダウンの待機上限。
	shutdownTimeout = 30 * time.Second
	// writeTimeoutMargin は上流待ちの最悪時間に上乗せするレスポンス書き込みの余裕。
	writeTimeoutMargin = 5 * time.Second
)

// serverWriteTimeout は1リクエストが上流を待ち得る最悪時間からWriteTimeoutを決める。
// /listing/{id}/{category} はマーケット1回とカタログの全試行を直列に待つ。
func serverWriteTimeout(cfg *config.Config) time.Duration {
	attempts := time.Duration(cfg.CatalogMaxAttempts)
	catalog := attempts*cfg.CatalogAttemptTimeout + (attempts-1)*cfg.CatalogRetryDelay
	return catalog + cfg.MarketTimeout + writeTimeoutMargin
}

// Init はアプリケーションの初期化を行う。
// 環境変数（と任意の.env）からConfigを読み込み、構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.Options{Format: logger.FormatJSON, Level: slog.LevelInfo})

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってロガーを作り直す
	l := logger.SetupDefault(w, logger.Options{
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})

	return cfg, l, nil
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

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Duration("write_timeout", serverWriteTimeout(cfg)),
		slog.String("market_base_url", cfg.MarketBaseURL),
		slog.String("catalog_base_url", cfg.CatalogBaseURL),
		slog.Bool("market_token_configured", cfg.MarketToken != ""),
	)

	return runServe(cfg, l)
}

// App は構築済みのHTTPハンドラーと、停止時に解放するリソースを保持する。
type App struct {
	Handler http.Handler

	rateLimiter  *middleware.RateLimiter
	warmer       *warmup.Scheduler // nilの場合はキャッシュ更新を行わない
	warmInterval time.Duration
}

// StartBackground はカタログキャッシュの定期更新をctxが終わるまで実行する。
// 更新が無効な設定の場合は何もしない。
func (a *App) StartBackground(ctx context.Context) {
	if a.warmer == nil {
		return
	}
	go a.warmer.Start(ctx, a.warmInterval)
}

// Close はバックグラウンドのリソースを解放する。
func (a *App) Close() {
	a.rateLimiter.Stop()
}

// New は設定から全依存関係をワイヤリングしてAppを構築する。
// 上流ベースURLが不正な場合はエラーを返す。
func New(cfg *config.Config, l *slog.Logger, reg *prometheus.Registry) (*App, error) {
	// 1. 上流URLの検証
	if err := security.ValidateBaseURL(cfg.MarketBaseURL, cfg.UpstreamSSRFGuard); err != nil {
		return nil, fmt.Errorf("invalid LZT_API_BASE_URL: %w", err)
	}
	if err := security.ValidateBaseURL(cfg.CatalogBaseURL, cfg.UpstreamSSRFGuard); err != nil {
		return nil, fmt.Errorf("invalid VALORANT_API_BASE_URL: %w", err)
	}

	// 2. メトリクス
	collector := metrics.NewCollector(reg)

	// 3. 上流クライアント
	catalogHTTP := security.NewUpstreamClient(security.ClientOptions{
		Timeout: cfg.CatalogAttemptTimeout,
		Guard:   cfg.UpstreamSSRFGuard,
	})
	marketHTTP := security.NewUpstreamClient(security.ClientOptions{
		Timeout: cfg.MarketTimeout,
		Guard:   cfg.UpstreamSSRFGuard,
	})

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.CatalogMaxAttempts
	policy.Delay = cfg.CatalogRetryDelay
	policy.AttemptTimeout = cfg.CatalogAttemptTimeout

	catalogClient := valorant.NewClient(catalogHTTP, l, collector, valorant.ClientConfig{
		BaseURL:  cfg.CatalogBaseURL,
		Policy:   policy,
		CacheTTL: cfg.CatalogCacheTTL,
	})
	marketClient := market.NewClient(marketHTTP, l, collector, market.ClientConfig{
		BaseURL: cfg.MarketBaseURL,
		Token:   cfg.MarketToken,
	})

	// 4. ドメインサービス
	enrichService := enrich.NewService(catalogClient, l, collector)

	// 5. ルーター
	rlCfg := middleware.DefaultRateLimiterConfig()
	rlCfg.GeneralRate, rlCfg.GeneralBurst = middleware.PerMinute(cfg.RateLimitGeneral)
	rlCfg.EnrichRate, rlCfg.EnrichBurst = middleware.PerMinute(cfg.RateLimitEnrich)
	rateLimiter := middleware.NewRateLimiter(rlCfg, l)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             l,
		Metrics:            collector,
		MetricsHandler:     metrics.Handler(reg),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		Listings:           marketClient,
		Images:             marketClient,
		Enricher:           enrichService,
	})

	a := &App{Handler: router, rateLimiter: rateLimiter}

	// 6. キャッシュ更新（キャッシュ無効時は意味が無いため起動しない）
	if cfg.CatalogWarmInterval > 0 && catalogClient.CacheEnabled() {
		a.warmer = warmup.NewScheduler(catalogClient, l)
		a.warmInterval = cfg.CatalogWarmInterval
	}

	return a, nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, l *slog.Logger) error {
	a, err := New(cfg, l, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()

	ln, err := net.Listen("tcp", ":"+cfg.ServerPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.StartBackground(ctx)

	return serve(ctx, ln, a.Handler, l, serverWriteTimeout(cfg))
}

// serve はctxがキャンセルされるまでlnでHTTPを提供し、その後グレースフルに停止する。
func serve(ctx context.Context, ln net.Listener, h http.Handler, l *slog.Logger, writeTimeout time.Duration) error {
	server := &http.Server{
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(l.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	l.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
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
