// Package gateway はゲームクライアント向けエッジゲートウェイのHTTP層を構成する。
// ルートガード、アセットキャッシュ、バックエンドへのAPIプロキシをひとつの
// ルーターにまとめる。
package gateway

import (
	"net/http"
	"net/url"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/eggsplore/internal/assetcache"
	"github.com/hitoshi/eggsplore/internal/metrics"
	"github.com/hitoshi/eggsplore/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ロギング
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	GuardConfig       middleware.GuardConfig

	// バックエンドAPI
	BackendURL *url.URL

	// アセット配信
	Assets *assetcache.Cache

	// メトリクス
	Collector *metrics.Collector
	Gatherer  prometheus.Gatherer
}

// NewRouter は全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → RouteGuard → RateLimit
//
// /api/*はバックエンドへのリバースプロキシ、その他のパスはアセットキャッシュが受ける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// ミドルウェアチェーン（Recoveryを最上位に適用）
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.GuardConfig.CookieName))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRouteGuardMiddleware(deps.GuardConfig, guardObserver(deps.Collector)))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}

	// 運用エンドポイント
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// バックエンドAPIプロキシ
	r.Handle("/api/*", NewAPIProxy(deps.BackendURL, deps.Logger, proxyObserver(deps.Collector)))

	// 残りはすべてアセットキャッシュへ
	r.NotFound(deps.Assets.Handler().ServeHTTP)

	return r
}

// guardObserver はnilの*Collectorをnilインターフェースに正規化する。
func guardObserver(c *metrics.Collector) middleware.GuardObserver {
	if c == nil {
		return nil
	}
	return c
}

// proxyObserver はnilの*Collectorをnilインターフェースに正規化する。
func proxyObserver(c *metrics.Collector) ProxyObserver {
	if c == nil {
		return nil
	}
	return c
}
