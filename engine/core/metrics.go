package core

import "github.com/prometheus/client_golang/prometheus"

// LoaderMetrics groups the collectors exported by the texture loader.
type LoaderMetrics struct {
	Requested  *prometheus.CounterVec
	Committed  *prometheus.CounterVec
	Failed     prometheus.Counter
	Cancelled  prometheus.Counter
	Exhausted  prometheus.Counter
	InFlight   prometheus.Gauge
	CommitTime prometheus.Histogram
}

// NewLoaderMetrics builds the loader collectors and registers them on reg
// when it is not nil.
func NewLoaderMetrics(reg prometheus.Registerer) *LoaderMetrics {
	m := &LoaderMetrics{
		Requested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "texstream",
			Subsystem: "loader",
			Name:      "requests_total",
			Help:      "Texture load requests accepted, by kind.",
		}, []string{"kind"}),
		Committed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "texstream",
			Subsystem: "loader",
			Name:      "commits_total",
			Help:      "Texture load tasks committed on the device thread, by shape.",
		}, []string{"shape"}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "texstream",
			Subsystem: "loader",
			Name:      "failures_total",
			Help:      "Tasks committed with the missing-texture fallback.",
		}),
		Cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "texstream",
			Subsystem: "loader",
			Name:      "cancellations_total",
			Help:      "Queued tasks removed before decoding finished.",
		}),
		Exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "texstream",
			Subsystem: "loader",
			Name:      "pool_exhausted_total",
			Help:      "Requests rejected because the task pool was at its limit.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "texstream",
			Subsystem: "loader",
			Name:      "tasks_in_flight",
			Help:      "Accepted tasks not yet committed or cancelled.",
		}),
		CommitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "texstream",
			Subsystem: "loader",
			Name:      "commit_seconds",
			Help:      "Time spent uploading one task on the device thread.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requested, m.Committed, m.Failed, m.Cancelled, m.Exhausted, m.InFlight, m.CommitTime)
	}
	return m
}
