// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GatewayCollector はゲートウェイのメトリクス収集のインターフェース。
// ガード、アセットキャッシュ、プロキシの各層から利用する。
type GatewayCollector interface {
	RecordGuardPass()
	RecordGuardRedirect()
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
	RecordProxyStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	guardPass       prometheus.Counter
	guardRedirect   prometheus.Counter
	cacheHit        *prometheus.CounterVec
	cacheMiss       *prometheus.CounterVec
	proxyStatus     *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		guardPass: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggsplore_guard_pass_total",
			Help: "ルートガード通過の合計数",
		}),
		guardRedirect: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggsplore_guard_redirect_total",
			Help: "ルートガードによるリダイレクトの合計数",
		}),
		cacheHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eggsplore_cache_hit_total",
			Help: "アセットキャッシュヒットの合計数",
		}, []string{"kind"}),
		cacheMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eggsplore_cache_miss_total",
			Help: "アセットキャッシュミスの合計数",
		}, []string{"kind"}),
		proxyStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eggsplore_proxy_status_total",
			Help: "プロキシレスポンスのステータスコード別の合計数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "eggsplore_upstream_latency_seconds",
			Help:    "アップストリーム取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.guardPass,
		c.guardRedirect,
		c.cacheHit,
		c.cacheMiss,
		c.proxyStatus,
		c.upstreamLatency,
	)

	return c
}

// RecordGuardPass はルートガード通過を記録する。
func (c *Collector) RecordGuardPass() {
	c.guardPass.Inc()
}

// RecordGuardRedirect はルートガードによるリダイレクトを記録する。
func (c *Collector) RecordGuardRedirect() {
	c.guardRedirect.Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(kind string) {
	c.cacheHit.WithLabelValues(kind).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(kind string) {
	c.cacheMiss.WithLabelValues(kind).Inc()
}

// RecordProxyStatus はプロキシレスポンスのステータスコードを記録する。
func (c *Collector) RecordProxyStatus(statusCode int) {
	c.proxyStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency はアップストリーム取得のレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
