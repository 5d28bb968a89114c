package bapptest

import (
	"strconv"
	"testing"
)

// Env provides a chainable builder for setting [bapp.BaseEnvironment] env vars
// via t.Setenv. Create one with [SetBaseEnv].
type Env struct {
	t testing.TB
}

// SetBaseEnv sets the required [bapp.BaseEnvironment] env vars to test defaults.
// Port is required because each test must use a unique port to avoid collisions.
//
// Defaults:
//   - BR_SERVICE_NAME: "test"
//   - BR_OTEL_EXPORTER: "none"
//   - BR_LOG_LEVEL: "warn"
//
// Use the returned [Env] to override individual values:
//
//	bapptest.SetBaseEnv(t, 18085).BasePath("/app").Debug(true)
func SetBaseEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("BR_PORT", strconv.Itoa(port))
	t.Setenv("BR_SERVICE_NAME", "test")
	t.Setenv("BR_OTEL_EXPORTER", "none")
	t.Setenv("BR_LOG_LEVEL", "warn")
	return &Env{t: t}
}

// ServiceName overrides BR_SERVICE_NAME.
func (e *Env) ServiceName(name string) *Env {
	e.t.Helper()
	e.t.Setenv("BR_SERVICE_NAME", name)
	return e
}

// HealthPath overrides BR_HEALTH_PATH.
func (e *Env) HealthPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BR_HEALTH_PATH", path)
	return e
}

// MetricsPath overrides BR_METRICS_PATH.
func (e *Env) MetricsPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BR_METRICS_PATH", path)
	return e
}

// BasePath overrides BR_BASE_PATH.
func (e *Env) BasePath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BR_BASE_PATH", path)
	return e
}

// Debug overrides BR_DEBUG.
func (e *Env) Debug(v bool) *Env {
	e.t.Helper()
	e.t.Setenv("BR_DEBUG", strconv.FormatBool(v))
	return e
}

// BufferLimit overrides BR_BUFFER_LIMIT.
func (e *Env) BufferLimit(n int) *Env {
	e.t.Helper()
	e.t.Setenv("BR_BUFFER_LIMIT", strconv.Itoa(n))
	return e
}

// RequestTimeout overrides BR_REQUEST_TIMEOUT.
func (e *Env) RequestTimeout(d string) *Env {
	e.t.Helper()
	e.t.Setenv("BR_REQUEST_TIMEOUT", d)
	return e
}
