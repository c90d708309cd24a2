// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 上流呼び出しの結果ラベル
const (
	OutcomeSuccess = "success"
	OutcomeStatus  = "bad_status"
	OutcomeError   = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 上流クライアントやエンリッチメントサービスから利用する。
type MetricsCollector interface {
	RecordUpstreamAttempt(source, outcome string)
	RecordUpstreamLatency(source string, duration time.Duration)
	RecordCatalogCache(category string, hit bool)
	RecordDroppedIDs(category string, count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamAttempts *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	droppedIDs       *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vavastore_upstream_attempts_total",
			Help: "上流API呼び出しの試行数（結果別）",
		}, []string{"source", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vavastore_upstream_latency_seconds",
			Help:    "上流API呼び出し1回あたりのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vavastore_catalog_cache_lookups_total",
			Help: "カタログキャッシュの参照数（ヒット/ミス別）",
		}, []string{"category", "result"}),
		droppedIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vavastore_enrich_dropped_ids_total",
			Help: "カタログに存在せず除外された所有IDの数",
		}, []string{"category"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vavastore_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.upstreamAttempts,
		c.upstreamLatency,
		c.cacheLookups,
		c.droppedIDs,
		c.httpStatus,
	)

	return c
}

// RecordUpstreamAttempt は上流API呼び出しの1試行を記録する。
func (c *Collector) RecordUpstreamAttempt(source, outcome string) {
	c.upstreamAttempts.WithLabelValues(source, outcome).Inc()
}

// RecordUpstreamLatency は上流API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(source string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCatalogCache はカタログキャッシュの参照結果を記録する。
func (c *Collector) RecordCatalogCache(category string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(category, result).Inc()
}

// RecordDroppedIDs はカタログに一致しなかった所有ID数を記録する。
func (c *Collector) RecordDroppedIDs(category string, count int) {
	if count <= 0 {
		return
	}
	c.droppedIDs.WithLabelValues(category).Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。メトリクス不要なテストや構成で使う。
type Nop struct{}

func (Nop) RecordUpstreamAttempt(source, outcome string)                {}
func (Nop) RecordUpstreamLatency(source string, duration time.Duration) {}
func (Nop) RecordCatalogCache(category string, hit bool)                {}
func (Nop) RecordDroppedIDs(category string, count int)                 {}
func (Nop) RecordHTTPStatus(statusCode int)                             {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
