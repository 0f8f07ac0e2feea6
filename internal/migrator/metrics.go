package migrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hurou927/pgmonolayer/internal/changeset"
)

// Metrics collects executor metrics in its own registry. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	migrations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lastRun    prometheus.Gauge
}

// NewMetrics creates the executor metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgmonolayer",
			Name:      "migrations_total",
			Help:      "Migrations run, by phase, direction and status.",
		}, []string{"phase", "direction", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pgmonolayer",
			Name:      "migration_duration_seconds",
			Help:      "Time spent running one migration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"phase", "direction"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pgmonolayer",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last migration run finished.",
		}),
	}
	reg.MustRegister(m.migrations, m.duration, m.lastRun)
	return m
}

// WriteToTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(phase changeset.Phase, dir Direction, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := Success
	if err != nil {
		status = Error
	}
	m.migrations.WithLabelValues(string(phase), string(dir), string(status)).Inc()
	m.duration.WithLabelValues(string(phase), string(dir)).Observe(d.Seconds())
}

func (m *Metrics) runFinished() {
	if m == nil {
		return
	}
	m.lastRun.SetToCurrentTime()
}
