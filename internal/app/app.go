package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/eggsplore/internal/assetcache"
	"github.com/hitoshi/eggsplore/internal/config"
	"github.com/hitoshi/eggsplore/internal/game"
	"github.com/hitoshi/eggsplore/internal/gameapi"
	"github.com/hitoshi/eggsplore/internal/gateway"
	"github.com/hitoshi/eggsplore/internal/logger"
	"github.com/hitoshi/eggsplore/internal/metrics"
	"github.com/hitoshi/eggsplore/internal/middleware"
	"github.com/hitoshi/eggsplore/internal/security"
	"github.com/hitoshi/eggsplore/internal/store"
)

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 設定を読み込む
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
			port = "3000"
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
		slog.String("upstream_url", cfg.UpstreamURL),
	)

	switch cmd {
	case CommandProbe:
		return runProbe(cfg)
	case CommandGateway:
		return runGateway(cfg)
	default:
		return runGateway(cfg)
	}
}

// runGateway はエッジゲートウェイモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runGateway(cfg *config.Config) error {
	// 1. URLの検証
	upstreamURL, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream URL: %w", err)
	}
	backendURL, err := url.Parse(cfg.BackendBaseURL)
	if err != nil {
		return fmt.Errorf("invalid backend base URL: %w", err)
	}

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. アセットキャッシュの初期化と先読み
	assets := assetcache.New(assetcache.Config{
		UpstreamURL:  upstreamURL,
		Version:      cfg.CacheVersion,
		MaxEntries:   cfg.CacheMaxEntries,
		FallbackPath: cfg.OfflineFallback,
		HTTPClient:   &http.Client{Timeout: cfg.UpstreamTimeout},
		Logger:       slog.Default(),
		Observer:     collector,
	})

	activateCtx, activateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer activateCancel()
	if err := assets.Activate(activateCtx); err != nil {
		return fmt.Errorf("asset cache activation failed: %w", err)
	}

	// 4. レート制限の初期化
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg, cfg.AuthCookieName)
	defer rateLimiter.Stop()

	// 5. ルーターの構築
	router := gateway.NewRouter(&gateway.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		GuardConfig: middleware.GuardConfig{
			SignInPath: cfg.SignInPath,
			CookieName: cfg.AuthCookieName,
		},
		BackendURL: backendURL,
		Assets:     assets,
		Collector:  collector,
		Gatherer:   registry,
	})

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
		slog.Info("gateway server starting",
			slog.String("addr", server.Addr),
			slog.String("cache_generation", assets.Generation()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down gateway server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("gateway server stopped gracefully")
	return nil
}

// runProbe はバックエンドへの疎通プローブを実行する。
// PROBE_EMAILとPROBE_PASSWORDの資格情報でログインし、プレイヤー状態と
// エッグ一覧を取得できることを確認して終了する。
func runProbe(cfg *config.Config) error {
	if cfg.ProbeEmail == "" || cfg.ProbePassword == "" {
		return fmt.Errorf("probe requires PROBE_EMAIL and PROBE_PASSWORD to be set")
	}

	// 1. クライアントスタックの構築
	apiClient := gameapi.NewClient(
		gameapi.NewDefaultHTTPClient(cfg.UpstreamTimeout),
		slog.Default(),
		cfg.BackendBaseURL,
	)
	st := store.New()
	svc := game.NewService(apiClient, st, security.NewTextSanitizer(), slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 2. ログイン
	if err := svc.Login(ctx, cfg.ProbeEmail, cfg.ProbePassword); err != nil {
		return fmt.Errorf("probe login failed: %w", err)
	}

	user := st.User()
	if user == nil {
		return fmt.Errorf("probe login returned no user")
	}

	// 3. アカウントIDからプレイヤー状態を解決する。
	//    エッグ一覧はアカウントIDではなくプレイヤーIDで引く必要がある。
	if err := svc.LoadPlayer(ctx, user.ID); err != nil {
		return fmt.Errorf("probe player fetch failed: %w", err)
	}
	player := st.User()

	// 4. エッグ一覧の取得
	if err := svc.RefreshEggs(ctx, player.ID); err != nil {
		return fmt.Errorf("probe egg fetch failed: %w", err)
	}

	slog.Info("probe completed",
		slog.String("player_id", player.ID),
		slog.Int("egg_count", len(st.Eggs())),
	)
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
