// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン試行の結果ラベル
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(result string)
	RecordValidationFailure(entity, op string)
	RecordWrite(entity, op string)
	RecordIntegrityViolation(entity string)
	RecordSessionsCleaned(count int64)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginAttempts       *prometheus.CounterVec
	validationFailures  *prometheus.CounterVec
	recordsWritten      *prometheus.CounterVec
	integrityViolations *prometheus.CounterVec
	sessionsCleaned     prometheus.Counter
	httpStatus          *prometheus.CounterVec
	requestLatency      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogadmin_login_attempts_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogadmin_validation_failures_total",
			Help: "エンティティ・操作別の入力検証失敗数",
		}, []string{"entity", "op"}),
		recordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogadmin_records_written_total",
			Help: "エンティティ・操作別の書き込み成功数",
		}, []string{"entity", "op"}),
		integrityViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogadmin_integrity_violations_total",
			Help: "ストレージ制約により拒否された書き込み数",
		}, []string{"entity"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogadmin_sessions_cleaned_total",
			Help: "クリーンアップジョブが削除した期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogadmin_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogadmin_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.validationFailures,
		c.recordsWritten,
		c.integrityViolations,
		c.sessionsCleaned,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordValidationFailure は入力検証の失敗を記録する。
func (c *Collector) RecordValidationFailure(entity, op string) {
	c.validationFailures.WithLabelValues(entity, op).Inc()
}

// RecordWrite は書き込み成功を記録する。
func (c *Collector) RecordWrite(entity, op string) {
	c.recordsWritten.WithLabelValues(entity, op).Inc()
}

// RecordIntegrityViolation はストレージ制約違反を記録する。
func (c *Collector) RecordIntegrityViolation(entity string) {
	c.integrityViolations.WithLabelValues(entity).Inc()
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。メトリクス不要な経路とテストで使用する。
type Nop struct{}

func (Nop) RecordLogin(string)                     {}
func (Nop) RecordValidationFailure(string, string) {}
func (Nop) RecordWrite(string, string)             {}
func (Nop) RecordIntegrityViolation(string)        {}
func (Nop) RecordSessionsCleaned(int64)            {}
func (Nop) RecordHTTPStatus(int)                   {}
func (Nop) RecordRequestLatency(time.Duration)     {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
