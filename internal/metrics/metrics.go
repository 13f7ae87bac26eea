// Package metrics collects the outcome of cleanup runs and pushes it to a
// Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "clretention"

// Metrics holds the run collectors, registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Templates        prometheus.Gauge
	Skipped          prometheus.Counter
	Candidates       prometheus.Counter
	Deleted          *prometheus.CounterVec
	DeleteFailures   *prometheus.CounterVec
	LastRunSuccess   prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
	RunDuration      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Templates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "templates_total",
			Help:      "Templates found in the content library during the last run",
		}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_skipped_total",
			Help:      "Library items skipped because their metadata could not be fetched",
		}),
		Candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delete_candidates_total",
			Help:      "Templates selected for deletion, including dry runs",
		}),
		Deleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_total",
			Help:      "Templates deleted",
		}, []string{"template"}),
		DeleteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delete_failures_total",
			Help:      "Template deletions rejected by vCenter",
		}, []string{"template"}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run completed, 0 if it aborted",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run",
		}),
	}

	m.Registry.MustRegister(
		m.Templates, m.Skipped, m.Candidates, m.Deleted, m.DeleteFailures,
		m.LastRunSuccess, m.LastRunTimestamp, m.RunDuration,
	)
	return m
}

// ObserveRun records the end of a run.
func (m *Metrics) ObserveRun(finished time.Time, d time.Duration, success bool) {
	m.RunDuration.Set(d.Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
}

// Push replaces the metrics of job on the Pushgateway at url. An empty url
// disables pushing.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
