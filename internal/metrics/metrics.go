// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordGraphRequest(operation, status string, duration time.Duration)
	RecordTokenRefresh(success bool)
	RecordAuthExchange(success bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	graphRequests *prometheus.CounterVec
	graphLatency  prometheus.Histogram
	tokenRefresh  *prometheus.CounterVec
	authExchange  *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		graphRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailgate_graph_requests_total",
			Help: "Graph API呼び出しの操作・ステータス別合計数",
		}, []string{"operation", "status"}),
		graphLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailgate_graph_latency_seconds",
			Help:    "Graph API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailgate_token_refresh_total",
			Help: "トークンリフレッシュの結果別合計数",
		}, []string{"result"}),
		authExchange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailgate_auth_exchanges_total",
			Help: "認可コード交換の結果別合計数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.graphRequests,
		c.graphLatency,
		c.tokenRefresh,
		c.authExchange,
		c.httpStatus,
	)

	return c
}

// RecordGraphRequest はGraph API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordGraphRequest(operation, status string, duration time.Duration) {
	c.graphRequests.WithLabelValues(operation, status).Inc()
	c.graphLatency.Observe(duration.Seconds())
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	c.tokenRefresh.WithLabelValues(resultLabel(success)).Inc()
}

// RecordAuthExchange は認可コード交換の結果を記録する。
func (c *Collector) RecordAuthExchange(success bool) {
	c.authExchange.WithLabelValues(resultLabel(success)).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
