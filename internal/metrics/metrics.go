package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the presence counters. It satisfies attendance.Recorder.
type Metrics struct {
	marks    *prometheus.CounterVec
	distance prometheus.Histogram
	exports  *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		marks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presensi_marks_total",
			Help: "Presence marking attempts by outcome.",
		}, []string{"result"}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "presensi_mark_distance_meters",
			Help:    "Distance from the geofence centre at marking time.",
			Buckets: []float64{5, 10, 20, 30, 50, 100, 250, 1000, 5000},
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presensi_exports_total",
			Help: "Report exports by format.",
		}, []string{"format"}),
	}
	reg.MustRegister(m.marks, m.distance, m.exports)
	return m
}

func (m *Metrics) ObserveMark(result string) {
	m.marks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDistance(meters float64) {
	m.distance.Observe(meters)
}

// ObserveExport counts one generated report of format (xlsx, pdf).
func (m *Metrics) ObserveExport(format string) {
	m.exports.WithLabelValues(format).Inc()
}
