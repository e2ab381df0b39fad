package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики оформления заказа.
type CheckoutMetrics struct {
	// Счётчики попыток
	started    prometheus.Counter
	redirected prometheus.Counter
	completed  prometheus.Counter
	failed     *prometheus.CounterVec

	// Гистограммы времени выполнения
	attemptDuration prometheus.Histogram
	stepDuration    *prometheus.HistogramVec

	// Попытки, выполняющие сетевые шаги прямо сейчас
	inFlight prometheus.Gauge
}

// NewCheckoutMetrics создаёт метрики в глобальном реестре Prometheus.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer создаёт метрики в указанном реестре.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		started: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_started_total",
			Help: "Total number of checkout attempts started",
		}),
		redirected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_redirected_total",
			Help: "Total number of checkout attempts handed to the payment provider",
		}),
		completed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_confirmed_total",
			Help: "Total number of orders confirmed after returning from the payment provider",
		}),
		failed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_failed_total",
			Help: "Total number of checkout failures by step and error kind",
		}, []string{"step", "kind"}),
		attemptDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_attempt_duration_seconds",
			Help:    "Duration from order placement to redirect in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_step_duration_seconds",
			Help:    "Duration of individual checkout steps in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0},
		}, []string{"step"}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_checkout_in_flight",
			Help: "Number of checkout attempts currently placing an order or creating a payment session",
		}),
	}
}

// RecordStarted увеличивает счётчик начатых попыток.
func (m *CheckoutMetrics) RecordStarted() {
	m.started.Inc()
}

// RecordRedirected увеличивает счётчик попыток, переданных платёжному провайдеру.
func (m *CheckoutMetrics) RecordRedirected() {
	m.redirected.Inc()
}

// RecordConfirmed увеличивает счётчик подтверждённых заказов.
func (m *CheckoutMetrics) RecordConfirmed() {
	m.completed.Inc()
}

// RecordFailed учитывает неудачу на шаге step с типом ошибки kind.
func (m *CheckoutMetrics) RecordFailed(step, kind string) {
	m.failed.WithLabelValues(step, kind).Inc()
}

// RecordInFlightStarted увеличивает количество активных попыток.
func (m *CheckoutMetrics) RecordInFlightStarted() {
	m.inFlight.Inc()
}

// RecordInFlightFinished уменьшает количество активных попыток.
func (m *CheckoutMetrics) RecordInFlightFinished() {
	m.inFlight.Dec()
}

// RecordAttemptDuration записывает время от создания заказа до перенаправления.
func (m *CheckoutMetrics) RecordAttemptDuration(duration time.Duration) {
	m.attemptDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага.
func (m *CheckoutMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}
