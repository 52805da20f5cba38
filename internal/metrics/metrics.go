// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// セッションコンテキストとHTTPミドルウェアから利用する。
type Recorder interface {
	RecordAuthOperation(operation, outcome string, duration time.Duration)
	RecordSessionTransition(kind string)
	RecordStaleWriteDiscarded(source string)
	RecordLateResult(operation string)
	SetActiveSessions(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authOps        *prometheus.CounterVec
	authLatency    *prometheus.HistogramVec
	transitions    *prometheus.CounterVec
	staleDiscarded *prometheus.CounterVec
	lateResults    *prometheus.CounterVec
	activeSessions prometheus.Gauge
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_auth_operations_total",
			Help: "認証操作（login/register/logout/update_profile）の結果別合計数",
		}, []string{"operation", "outcome"}),
		authLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidshare_auth_operation_duration_seconds",
			Help:    "認証操作の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_session_transitions_total",
			Help: "適用されたセッション変化の種類別合計数",
		}, []string{"kind"}),
		staleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_stale_writes_discarded_total",
			Help: "identity変化により破棄された遅延書き込みの合計数",
		}, []string{"source"}),
		lateResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_late_results_total",
			Help: "タイムアウト後に到着し破棄されたIdP呼び出し結果の合計数",
		}, []string{"operation"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vidshare_active_session_contexts",
			Help: "稼働中のセッションコンテキスト数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidshare_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authOps,
		c.authLatency,
		c.transitions,
		c.staleDiscarded,
		c.lateResults,
		c.activeSessions,
		c.httpStatus,
	)

	return c
}

// RecordAuthOperation は認証操作の結果と所要時間を記録する。
// outcomeはsuccessまたはエラーコード。
func (c *Collector) RecordAuthOperation(operation, outcome string, duration time.Duration) {
	c.authOps.WithLabelValues(operation, outcome).Inc()
	c.authLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSessionTransition は適用したセッション変化を記録する。
func (c *Collector) RecordSessionTransition(kind string) {
	c.transitions.WithLabelValues(kind).Inc()
}

// RecordStaleWriteDiscarded は破棄した遅延書き込みを記録する。
func (c *Collector) RecordStaleWriteDiscarded(source string) {
	c.staleDiscarded.WithLabelValues(source).Inc()
}

// RecordLateResult はタイムアウト後に到着した結果を記録する。
func (c *Collector) RecordLateResult(operation string) {
	c.lateResults.WithLabelValues(operation).Inc()
}

// SetActiveSessions は稼働中のセッションコンテキスト数を設定する。
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Noop は何も記録しないRecorder。テストとメトリクス無効時に使う。
type Noop struct{}

func (Noop) RecordAuthOperation(string, string, time.Duration) {}
func (Noop) RecordSessionTransition(string)                    {}
func (Noop) RecordStaleWriteDiscarded(string)                  {}
func (Noop) RecordLateResult(string)                           {}
func (Noop) SetActiveSessions(int)                             {}
func (Noop) RecordHTTPStatus(int)                              {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Noop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
