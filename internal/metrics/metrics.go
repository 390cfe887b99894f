// Package metrics содержит prometheus-метрики синхронизации и расчёта цен.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics набор коллекторов сервиса.
type Metrics struct {
	syncItems     *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
	squadsUpdated *prometheus.CounterVec
	priceQuotes   *prometheus.CounterVec
}

// New регистрирует коллекторы в reg. Для production передаётся prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		syncItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remnashop_sync_items_total",
				Help: "Processed sync items by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remnashop_sync_duration_seconds",
				Help:    "Duration of a full sync pass",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"direction"},
		),
		squadsUpdated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remnashop_plan_squads_reconciled_total",
				Help: "Plans processed by squad reconciliation",
			},
			[]string{"outcome"},
		),
		priceQuotes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remnashop_price_quotes_total",
				Help: "Calculated price quotes by purchase context",
			},
			[]string{"context", "discount"},
		),
	}
}

// ObserveSyncItems добавляет n элементов с исходом outcome.
func (m *Metrics) ObserveSyncItems(direction, outcome string, n int) {
	if n <= 0 {
		return
	}
	m.syncItems.WithLabelValues(direction, outcome).Add(float64(n))
}

// ObserveSyncDuration записывает длительность прохода.
func (m *Metrics) ObserveSyncDuration(direction string, d time.Duration) {
	m.syncDuration.WithLabelValues(direction).Observe(d.Seconds())
}

// ObserveSquadsReconciled учитывает результат сверки сквадов.
func (m *Metrics) ObserveSquadsReconciled(updated, unchanged int) {
	m.squadsUpdated.WithLabelValues("updated").Add(float64(updated))
	m.squadsUpdated.WithLabelValues("unchanged").Add(float64(unchanged))
}

// ObserveQuote учитывает расчёт цены.
func (m *Metrics) ObserveQuote(context string, discounted bool) {
	label := "none"
	if discounted {
		label = "applied"
	}
	m.priceQuotes.WithLabelValues(context, label).Inc()
}
