package bapp

import (
	"github.com/advdv/broute"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MetricsNamespace prefixes the dispatch metrics of every app.
const MetricsNamespace = "broute"

// NewRegistry creates the prometheus registry that is served on BR_METRICS_PATH. It includes the Go runtime and
// process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics registers the dispatch metrics, labeled with the service name.
func NewMetrics(env Environment, reg *prometheus.Registry) (*broute.Metrics, error) {
	return broute.NewMetrics(
		prometheus.WrapRegistererWith(prometheus.Labels{"service": env.serviceName()}, reg),
		MetricsNamespace)
}
