package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pasaph"

// Registry 指标注册表
var Registry = prometheus.NewRegistry()

var (
	// StatusChanges 代购记录状态变更次数
	StatusChanges = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fulfillment",
		Name:      "status_changes_total",
		Help:      "Fulfillment record lifecycle changes by action and resulting status.",
	}, []string{"action", "status"})

	// BulkUpdates 批量标记已买结果
	BulkUpdates = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fulfillment",
		Name:      "bulk_updates_total",
		Help:      "Bulk mark-purchased runs by result.",
	}, []string{"result"})

	// Exports 导出次数
	Exports = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fulfillment",
		Name:      "exports_total",
		Help:      "Shopping list exports by format.",
	}, []string{"format"})

	// CacheLookups 记录缓存命中情况
	CacheLookups = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fulfillment",
		Name:      "cache_lookups_total",
		Help:      "Seller record cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	// CustomsTier 卖家当前免税额度档位（0 normal / 1 near / 2 over）
	CustomsTier = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "customs",
		Name:      "tier",
		Help:      "Latest de minimis tier per seller: 0 normal, 1 near, 2 over.",
	}, []string{"seller_id"})

	// CheckoutSessions 结账会话创建与状态
	CheckoutSessions = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "sessions_total",
		Help:      "Checkout sessions by mode and status transition.",
	}, []string{"mode", "status"})

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route, method and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveHTTP 记录一次 HTTP 请求
func ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
