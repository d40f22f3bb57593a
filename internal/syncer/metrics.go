package syncer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "declagate"
	metricsSubsystem = "sync"

	resultSuccess = "success"
	resultFailure = "failure"
	resultSkipped = "skipped"
)

// Metrics counts applied events and observes their latency.
type Metrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the sync collectors and registers them on registerer
// when it is not nil. Collectors already registered are reused.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "events_total",
			Help:      "Number of sync events by category, operation and result.",
		}, []string{"category", "operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "event_duration_seconds",
			Help:      "Time spent applying one sync event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"category", "operation"}),
	}
	if registerer == nil {
		return metrics, nil
	}

	var err error
	if metrics.events, err = register(registerer, metrics.events); err != nil {
		return nil, err
	}
	if metrics.duration, err = register(registerer, metrics.duration); err != nil {
		return nil, err
	}
	return metrics, nil
}

func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}
