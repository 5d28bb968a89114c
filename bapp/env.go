package bapp

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Environment defines the interface that all environment configurations must implement.
// Embed BaseEnvironment in your struct to satisfy this interface.
type Environment interface {
	port() int
	serviceName() string
	healthPath() string
	metricsPath() string
	logLevel() zapcore.Level
	debug() bool
	basePath() string
	bufferLimit() int
	otelExporter() string
	requestTimeout() time.Duration
	routeCacheSize() int
}

// BaseEnvironment contains the environment variables every app reads.
// Embed this in your custom environment struct.
type BaseEnvironment struct {
	Port        int           `env:"BR_PORT,required"`
	ServiceName string        `env:"BR_SERVICE_NAME,required"`
	HealthPath  string        `env:"BR_HEALTH_PATH" envDefault:"/health"`
	MetricsPath string        `env:"BR_METRICS_PATH" envDefault:"/metrics"`
	LogLevel    zapcore.Level `env:"BR_LOG_LEVEL" envDefault:"info"`
	// Debug adds error details such as stack traces and causes to error responses.
	Debug          bool          `env:"BR_DEBUG"`
	BasePath       string        `env:"BR_BASE_PATH"`
	BufferLimit    int           `env:"BR_BUFFER_LIMIT" envDefault:"-1"`
	OtelExporter   string        `env:"BR_OTEL_EXPORTER" envDefault:"stdout"`
	RequestTimeout time.Duration `env:"BR_REQUEST_TIMEOUT" envDefault:"30s"`
	RouteCacheSize int           `env:"BR_ROUTE_CACHE_SIZE" envDefault:"1024"`
}

func (e BaseEnvironment) port() int {
	return e.Port
}

func (e BaseEnvironment) serviceName() string {
	return e.ServiceName
}

func (e BaseEnvironment) healthPath() string {
	return e.HealthPath
}

func (e BaseEnvironment) metricsPath() string {
	return e.MetricsPath
}

func (e BaseEnvironment) logLevel() zapcore.Level {
	return e.LogLevel
}

func (e BaseEnvironment) debug() bool {
	return e.Debug
}

func (e BaseEnvironment) basePath() string {
	return e.BasePath
}

func (e BaseEnvironment) bufferLimit() int {
	return e.BufferLimit
}

func (e BaseEnvironment) otelExporter() string {
	return e.OtelExporter
}

func (e BaseEnvironment) requestTimeout() time.Duration {
	return e.RequestTimeout
}

func (e BaseEnvironment) routeCacheSize() int {
	return e.RouteCacheSize
}

var _ Environment = BaseEnvironment{}

// ParseEnv parses environment variables into the given Environment type.
func ParseEnv[E Environment]() func() (E, error) {
	return func() (e E, err error) {
		if err := env.Parse(&e); err != nil {
			return e, errors.Wrap(err, "failed to parse environment")
		}
		return e, nil
	}
}
