package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics содержит метрики кэша корзины.
type CartMetrics struct {
	adds       *prometheus.CounterVec
	reconciles *prometheus.CounterVec
	drift      prometheus.Histogram
	badge      prometheus.Gauge
}

// NewCartMetrics создаёт метрики в глобальном реестре Prometheus.
func NewCartMetrics() *CartMetrics {
	return NewCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCartMetricsWithRegisterer создаёт метрики в указанном реестре.
func NewCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		adds: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_add_total",
			Help: "Total number of add-to-cart actions by result",
		}, []string{"result"}),
		reconciles: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_reconcile_total",
			Help: "Total number of badge reconciliations by outcome",
		}, []string{"outcome"}),
		drift: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_cart_badge_drift_items",
			Help:    "Absolute difference between the local badge count and the authoritative cart",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		badge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_cart_badge_count",
			Help: "Current local cart badge count",
		}),
	}
}

// RecordAdd учитывает добавление в корзину с результатом result (ok, error).
func (m *CartMetrics) RecordAdd(result string) {
	m.adds.WithLabelValues(result).Inc()
}

// RecordReconcile учитывает сверку счётчика и расхождение с авторитетным значением.
func (m *CartMetrics) RecordReconcile(drift int) {
	if drift < 0 {
		drift = -drift
	}
	outcome := "unchanged"
	if drift > 0 {
		outcome = "corrected"
	}
	m.reconciles.WithLabelValues(outcome).Inc()
	m.drift.Observe(float64(drift))
}

// SetBadge выставляет текущее значение счётчика корзины.
func (m *CartMetrics) SetBadge(count int) {
	m.badge.Set(float64(count))
}
