package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer exports store operation metrics to Prometheus.
type Observer struct {
	duration  *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	conflicts prometheus.Counter
}

func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "gallerybox"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of remote store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_errors_total",
			Help:      "Count of failed remote store operations.",
		}, []string{"operation"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "version_conflicts_total",
			Help:      "Count of conditional writes rejected because of a stale version.",
		}),
	}

	collectors := []prometheus.Collector{o.duration, o.errors, o.conflicts}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, fmt.Errorf("register store metrics: %w", err)
			}
			collectors[i] = are.ExistingCollector
		}
	}
	o.duration = collectors[0].(*prometheus.HistogramVec)
	o.errors = collectors[1].(*prometheus.CounterVec)
	o.conflicts = collectors[2].(prometheus.Counter)

	return o, nil
}

func (o *Observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	o.errors.WithLabelValues(op).Inc()
	if errors.Is(err, ErrVersionMismatch) {
		o.conflicts.Inc()
	}
}

type instrumentedStore struct {
	next     Store
	observer *Observer
}

// Instrument wraps next so every operation is recorded by observer.
func Instrument(next Store, observer *Observer) Store {
	if observer == nil {
		return next
	}
	return &instrumentedStore{next: next, observer: observer}
}

func (s *instrumentedStore) Get(ctx context.Context, path string) (*Object, error) {
	start := time.Now()
	obj, err := s.next.Get(ctx, path)
	s.observer.observe("get", start, err)
	return obj, err
}

func (s *instrumentedStore) Put(ctx context.Context, handle VersionedHandle, content []byte, message string) (*Commit, error) {
	start := time.Now()
	commit, err := s.next.Put(ctx, handle, content, message)
	s.observer.observe("put", start, err)
	return commit, err
}

func (s *instrumentedStore) Delete(ctx context.Context, handle VersionedHandle, message string) (*Commit, error) {
	start := time.Now()
	commit, err := s.next.Delete(ctx, handle, message)
	s.observer.observe("delete", start, err)
	return commit, err
}
