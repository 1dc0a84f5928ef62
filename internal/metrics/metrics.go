// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// ドメインサービスとHTTPミドルウェアの両方から利用する。
type Collector struct {
	submissions     prometheus.Counter
	picks           *prometheus.CounterVec
	sessionsCreated prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lunchdraw_submissions_total",
			Help: "提出されたレストラン候補の合計数",
		}),
		picks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchdraw_picks_total",
			Help: "抽選試行の結果別合計数",
		}, []string{"result"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lunchdraw_sessions_created_total",
			Help: "作成されたセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunchdraw_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lunchdraw_request_duration_seconds",
			Help:    "HTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.submissions,
		c.picks,
		c.sessionsCreated,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

// RecordSubmission はレストラン提出を記録する。
func (c *Collector) RecordSubmission() {
	c.submissions.Inc()
}

// RecordPick は抽選試行の結果を記録する。
// resultは success / conflict / no_candidates のいずれか。
func (c *Collector) RecordPick(result string) {
	c.picks.WithLabelValues(result).Inc()
}

// RecordSessionCreated はセッション作成を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
