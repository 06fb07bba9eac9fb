package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry создает реестр Prometheus со стандартными коллекторами процесса.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Transactions - метрики обмена с синтезатором. Реализует valon.Observer.
type Transactions struct {
	Duration *prometheus.HistogramVec // labels: command
	Total    *prometheus.CounterVec   // labels: command, result
}

// NewTransactions регистрирует метрики транзакций в reg.
func NewTransactions(reg prometheus.Registerer) *Transactions {
	m := &Transactions{
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "valon_transaction_duration_seconds",
			Help: "Длительность транзакции с синтезатором, включая открытие и закрытие порта.",
			// 9600 бод: ~1 мс на байт, кадр регистров около 26 мс
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"command"}),
		Total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valon_transactions_total",
			Help: "Транзакции с синтезатором по итогу.",
		}, []string{"command", "result"}),
	}
	reg.MustRegister(m.Duration, m.Total)
	return m
}

func (m *Transactions) ObserveTransaction(command, result string, d time.Duration) {
	m.Duration.WithLabelValues(command).Observe(d.Seconds())
	m.Total.WithLabelValues(command, result).Inc()
}
