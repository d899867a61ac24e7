package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "recherche"

// Adapter holds the search adapter instruments. Construct one per process and hand it
// to the services that record into it.
type Adapter struct {
	IndexDuration prometheus.Histogram
	IndexInFlight prometheus.Gauge
	IndexTotal    *prometheus.CounterVec

	SearchDuration *prometheus.HistogramVec
	SearchTotal    *prometheus.CounterVec
	DroppedHits    *prometheus.CounterVec
}

// NewAdapter creates the adapter instruments and registers them on reg.
func NewAdapter(reg prometheus.Registerer) *Adapter {
	m := &Adapter{
		IndexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_duration_seconds",
			Help:      "Duration of successful index calls",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		IndexInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_in_flight",
			Help:      "Index calls subscribed and not yet terminated",
		}),
		IndexTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_total",
			Help:      "Index calls by outcome",
		}, []string{"result"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of successful backend searches",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"mode"}),
		SearchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_total",
			Help:      "Backend searches by mode and outcome",
		}, []string{"mode", "result"}),
		DroppedHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_dropped_hits_total",
			Help:      "Search hits dropped because they could not be decoded",
		}, []string{"mode"}),
	}
	reg.MustRegister(m.IndexDuration, m.IndexInFlight, m.IndexTotal,
		m.SearchDuration, m.SearchTotal, m.DroppedHits)
	return m
}

// IndexSuccess returns the success series of index_total.
func (m *Adapter) IndexSuccess() prometheus.Counter { return m.IndexTotal.WithLabelValues("success") }

// IndexFailure returns the failure series of index_total.
func (m *Adapter) IndexFailure() prometheus.Counter { return m.IndexTotal.WithLabelValues("failure") }
