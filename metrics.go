package broute

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records dispatch outcomes in Prometheus collectors.
type Metrics struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Number of dispatched requests by routing outcome and response status.",
			},
			[]string{"outcome", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent dispatching requests by route pattern.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_errors_total",
				Help:      "Number of errors turned into responses by error kind.",
			},
			[]string{"kind"},
		),
	}

	for _, c := range []prometheus.Collector{m.dispatches, m.duration, m.errors} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register collector")
		}
	}

	return m, nil
}

// MustNewMetrics is like [NewMetrics] but panics on error.
func MustNewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m, err := NewMetrics(reg, namespace)
	if err != nil {
		panic("broute: " + err.Error())
	}

	return m
}

func (m *Metrics) observe(outcome OutcomeStatus, route string, status int, took time.Duration) {
	if m == nil {
		return
	}

	m.dispatches.WithLabelValues(outcome.String(), strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(took.Seconds())
}

func (m *Metrics) observeError(kind Kind) {
	if m == nil {
		return
	}

	m.errors.WithLabelValues(kind.String()).Inc()
}
