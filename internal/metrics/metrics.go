// Package metrics exposes Prometheus counters for the streamer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pool_streamer"

// Metrics holds the collectors registered on a private registry, so several
// instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	TransactionsProcessed *prometheus.CounterVec
	TradesInferred        *prometheus.CounterVec
	FetchFailures         *prometheus.CounterVec
	RPCRetries            prometheus.Counter
	Subscribers           prometheus.Gauge
	HistorySize           prometheus.Gauge
	BackfillDuration      prometheus.Gauge
	StartTime             time.Time
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TransactionsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_processed_total",
			Help:      "Transactions run through the inferrer",
		}, []string{"source"}),
		TradesInferred: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_inferred_total",
			Help:      "Trades reconstructed, by type",
		}, []string{"source", "type"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "RPC fetches that failed after retries",
		}, []string{"source"}),
		RPCRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_retries_total",
			Help:      "Rate-limited RPC calls that were retried",
		}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Currently connected stream subscribers",
		}),
		HistorySize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_trades",
			Help:      "Trades held in the history buffer",
		}),
		BackfillDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backfill_duration_seconds",
			Help:      "Wall time of the last backfill run",
		}),
		StartTime: time.Now(),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Uptime returns the time since the metrics were created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.StartTime)
}
