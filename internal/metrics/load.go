package metrics

import "github.com/prometheus/client_golang/prometheus"

// Load holds the load ramp instruments.
type Load struct {
	Concurrency       prometheus.Gauge
	WindowCompletions prometheus.Gauge
	Completions       *prometheus.CounterVec
}

// NewLoad creates the load ramp instruments and registers them on reg.
func NewLoad(reg prometheus.Registerer) *Load {
	m := &Load{
		Concurrency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_concurrency",
			Help:      "In-flight cap of the running ramp level",
		}),
		WindowCompletions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_window_completions",
			Help:      "Completions counted in the last closed throughput window",
		}),
		Completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_completions_total",
			Help:      "Load test index completions by outcome",
		}, []string{"result"}),
	}
	reg.MustRegister(m.Concurrency, m.WindowCompletions, m.Completions)
	return m
}
