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
// Session Store、Hub、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordSignIn(result string)
	RecordProfileProvisioned()
	RecordGuardDecision(decision string)
	SetLiveClients(n int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordSessionsCleaned(count int64)
}

var _ MetricsCollector = (*Collector)(nil)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIns             *prometheus.CounterVec
	profilesProvisioned prometheus.Counter
	guardDecisions      *prometheus.CounterVec
	liveClients         prometheus.Gauge
	httpStatus          *prometheus.CounterVec
	requestLatency      prometheus.Histogram
	sessionsCleaned     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "churchdash_sign_in_total",
			Help: "結果別のサインイン試行数",
		}, []string{"result"}),
		profilesProvisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "churchdash_profiles_provisioned_total",
			Help: "初回サインイン時に作成されたプロフィールの合計数",
		}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "churchdash_guard_decisions_total",
			Help: "アクセスガードの判定結果別の件数",
		}, []string{"decision"}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "churchdash_live_clients",
			Help: "メモリ上に保持しているクライアント数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "churchdash_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "churchdash_request_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "churchdash_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.signIns,
		c.profilesProvisioned,
		c.guardDecisions,
		c.liveClients,
		c.httpStatus,
		c.requestLatency,
		c.sessionsCleaned,
	)

	return c
}

// RecordSignIn はサインインの結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// RecordProfileProvisioned はプロフィールの自動作成を記録する。
func (c *Collector) RecordProfileProvisioned() {
	c.profilesProvisioned.Inc()
}

// RecordGuardDecision はアクセスガードの判定結果を記録する。
func (c *Collector) RecordGuardDecision(decision string) {
	c.guardDecisions.WithLabelValues(decision).Inc()
}

// SetLiveClients は保持しているクライアント数を設定する。
func (c *Collector) SetLiveClients(n int) {
	c.liveClients.Set(float64(n))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordSessionsCleaned は削除したセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
