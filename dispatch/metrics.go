package dispatch

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records dispatcher activity.
type Metrics struct {
	calls    *prometheus.CounterVec
	failures *prometheus.CounterVec
	cleanups *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lockWait prometheus.Histogram
}

// NewMetrics creates the dispatcher collectors and registers them with r.
func NewMetrics(namespace string, r prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "calls_total",
			Help:      "number of export calls started",
		}, []string{"export"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "number of export calls that returned an error, by error kind",
		}, []string{"export", "kind"}),
		cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "cleanups_total",
			Help:      "number of post-return cleanup invocations",
		}, []string{"export"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "call_seconds",
			Help:      "time from lowering to cleanup for one call",
			Buckets:   prometheus.DefBuckets,
		}, []string{"export"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "lock_wait_seconds",
			Help:      "time spent waiting for the instance lock",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if r == nil {
		return m, nil
	}

	// collectors already registered under the same names are shared, so
	// several runtimes can report into one registry
	reg := &sharedRegisterer{r: r}
	m.calls = share(reg, m.calls)
	m.failures = share(reg, m.failures)
	m.cleanups = share(reg, m.cleanups)
	m.duration = share(reg, m.duration)
	m.lockWait = share(reg, m.lockWait)
	if reg.err != nil {
		for _, c := range reg.added {
			r.Unregister(c)
		}
		return nil, reg.err
	}
	return m, nil
}

type sharedRegisterer struct {
	r     prometheus.Registerer
	added []prometheus.Collector
	err   error
}

// share registers c, or returns the collector of the same type already
// registered in its place. After the first failure it does nothing.
func share[T prometheus.Collector](s *sharedRegisterer, c T) T {
	if s.err != nil {
		return c
	}
	err := s.r.Register(c)
	if err == nil {
		s.added = append(s.added, c)
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if stderrors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	s.err = err
	return c
}
