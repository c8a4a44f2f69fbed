package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 推薦服務的 prometheus 指標，使用獨立 registry
type Metrics struct {
	registry *prometheus.Registry

	EvaluationDuration *prometheus.HistogramVec
	RecipesEvaluated   *prometheus.CounterVec
	AlertsGenerated    *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	StoreWrites        *prometheus.CounterVec
	SnapshotVersion    prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New 建立並註冊所有指標
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		EvaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brew_evaluation_duration_seconds",
				Help:    "Time spent building one recommendation response",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation"},
		),
		RecipesEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brew_recipes_evaluated_total",
				Help: "Recipes evaluated, by verdict",
			},
			[]string{"verdict"},
		),
		AlertsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brew_alerts_generated_total",
				Help: "Inventory alerts generated, by kind",
			},
			[]string{"kind"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brew_cache_lookups_total",
				Help: "Result cache lookups, by outcome",
			},
			[]string{"result"},
		),
		StoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brew_store_writes_total",
				Help: "Inventory writes, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		SnapshotVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "brew_snapshot_version",
			Help: "Version of the most recently evaluated inventory snapshot",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brew_http_requests_total",
				Help: "HTTP requests, by route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brew_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.EvaluationDuration,
		m.RecipesEvaluated,
		m.AlertsGenerated,
		m.CacheLookups,
		m.StoreWrites,
		m.SnapshotVersion,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 取得 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 處理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvaluation 記錄一次評估
func (m *Metrics) ObserveEvaluation(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.EvaluationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// CountRecipe 依結果計數
func (m *Metrics) CountRecipe(canBrew bool) {
	if m == nil {
		return
	}
	verdict := "blocked"
	if canBrew {
		verdict = "brewable"
	}
	m.RecipesEvaluated.WithLabelValues(verdict).Inc()
}

// CountAlert 依種類計數
func (m *Metrics) CountAlert(kind string) {
	if m == nil {
		return
	}
	m.AlertsGenerated.WithLabelValues(kind).Inc()
}

// CountCache 記錄快取結果：hit / miss / error
func (m *Metrics) CountCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// CountWrite 記錄庫存寫入
func (m *Metrics) CountWrite(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreWrites.WithLabelValues(operation, outcome).Inc()
}

// SetVersion 更新快照版本
func (m *Metrics) SetVersion(v uint64) {
	if m == nil {
		return
	}
	m.SnapshotVersion.Set(float64(v))
}
