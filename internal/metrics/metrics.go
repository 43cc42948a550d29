package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	propagations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dbmirror",
			Subsystem: "mirror",
			Name:      "propagations_total",
			Help:      "Propagation attempts by type, operation and outcome.",
		}, []string{"type", "operation", "outcome"},
	)
	propagationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dbmirror",
			Subsystem: "mirror",
			Name:      "propagation_duration_seconds",
			Help:      "Time spent writing one mutation to the secondary store.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type", "operation"},
	)
	connectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dbmirror",
			Subsystem: "mirror",
			Name:      "connection_state",
			Help:      "Secondary connection state (1 = current state, 0 = other states).",
		}, []string{"state"},
	)
	resyncRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dbmirror",
			Subsystem: "resync",
			Name:      "records_total",
			Help:      "Records handled by bulk resync runs by type and result (synced, skipped, errored).",
		}, []string{"type", "result"},
	)
	driftMismatch = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dbmirror",
			Subsystem: "drift",
			Name:      "mismatch",
			Help:      "1 when the last drift comparison found differing counts for a type.",
		}, []string{"type"},
	)
)

var states = []string{"unconfigured", "connecting", "healthy", "unhealthy"}

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{propagations, propagationDuration, connectionState, resyncRecords, driftMismatch}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register has succeeded.

func ObservePropagation(typeName, operation, outcome string, seconds float64) {
	if !regOK.Load() {
		return
	}
	propagations.WithLabelValues(typeName, operation, outcome).Inc()
	if seconds > 0 {
		propagationDuration.WithLabelValues(typeName, operation).Observe(seconds)
	}
}

func SetConnectionState(state string) {
	if !regOK.Load() {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		connectionState.WithLabelValues(s).Set(v)
	}
}

func AddResync(typeName string, synced, skipped, errored int) {
	if !regOK.Load() {
		return
	}
	resyncRecords.WithLabelValues(typeName, "synced").Add(float64(synced))
	resyncRecords.WithLabelValues(typeName, "skipped").Add(float64(skipped))
	resyncRecords.WithLabelValues(typeName, "errored").Add(float64(errored))
}

func SetDrift(typeName string, mismatch bool) {
	if !regOK.Load() {
		return
	}
	v := 0.0
	if mismatch {
		v = 1
	}
	driftMismatch.WithLabelValues(typeName).Set(v)
}
