package monitor

import (
	"expvar"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	StreamClients    prometheus.Gauge
	LiveSessions     *prometheus.GaugeVec
	MutationsTotal   *prometheus.CounterVec
	BroadcastsTotal  prometheus.Counter
	BroadcastLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Number of open stream connections",
		}),
		LiveSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Number of live game sessions per game type",
		}, []string{"game"}),
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Total accepted state mutations per game type",
		}, []string{"game"}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total snapshot fan-outs",
		}),
		BroadcastLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_latency_seconds",
			Help:      "Time to fan one snapshot out to all subscribers",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.StreamClients,
		m.LiveSessions,
		m.MutationsTotal,
		m.BroadcastsTotal,
		m.BroadcastLatency,
	)

	return m
}

type Monitor struct {
	metrics   *Metrics
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

// StartServer serves /metrics plus an expvar uptime on its own listener so
// scrapes never contend with game traffic.
func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))
	mux.Handle("/debug/vars", expvar.Handler())

	go http.ListenAndServe(addr, mux)
}

func (m *Monitor) IncStreamClients() {
	m.metrics.StreamClients.Inc()
}

func (m *Monitor) DecStreamClients() {
	m.metrics.StreamClients.Dec()
}

func (m *Monitor) SetLiveSessions(game string, count int) {
	m.metrics.LiveSessions.WithLabelValues(game).Set(float64(count))
}

func (m *Monitor) IncMutations(game string) {
	m.metrics.MutationsTotal.WithLabelValues(game).Inc()
}

func (m *Monitor) ObserveBroadcast(duration time.Duration) {
	m.metrics.BroadcastsTotal.Inc()
	m.metrics.BroadcastLatency.Observe(duration.Seconds())
}
