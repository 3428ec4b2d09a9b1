// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// HTTPリクエストの結果とDB接続プールの状態を記録する。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	requestDuration prometheus.Histogram

	poolOpen  prometheus.Gauge
	poolIdle  prometheus.Gauge
	poolInUse prometheus.Gauge
	poolMax   prometheus.Gauge
	poolWait  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userapi_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "userapi_request_duration_seconds",
			Help:    "リクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		poolOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "userapi_db_pool_open_connections",
			Help: "プール内の接続数（使用中 + アイドル）",
		}),
		poolIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "userapi_db_pool_idle_connections",
			Help: "アイドル状態の接続数",
		}),
		poolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "userapi_db_pool_in_use_connections",
			Help: "使用中の接続数",
		}),
		poolMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "userapi_db_pool_max_open_connections",
			Help: "プールの最大接続数",
		}),
		poolWait: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "userapi_db_pool_wait_count",
			Help: "接続待ちが発生した累計回数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestDuration,
		c.poolOpen,
		c.poolIdle,
		c.poolInUse,
		c.poolMax,
		c.poolWait,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestDuration(duration time.Duration) {
	c.requestDuration.Observe(duration.Seconds())
}

// SetPoolStats はDB接続プールの統計情報をゲージへ反映する。
func (c *Collector) SetPoolStats(stats sql.DBStats) {
	c.poolOpen.Set(float64(stats.OpenConnections))
	c.poolIdle.Set(float64(stats.Idle))
	c.poolInUse.Set(float64(stats.InUse))
	c.poolMax.Set(float64(stats.MaxOpenConnections))
	c.poolWait.Set(float64(stats.WaitCount))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
