package broute

import (
	"log"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogInternalError(err error, chain []string)
	LogImplicitFlushError(err error)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogInternalError(err error, chain []string) {
	l.Logger.Printf("broute: internal error: %s [%s]", err, strings.Join(chain, " <- "))
}

func (l stdLogger) LogImplicitFlushError(err error) {
	l.Logger.Printf("broute: error while flushing implicitly: %s", err)
}

// NewStdLogger logs through a standard library logger.
func NewStdLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}

	return stdLogger{l}
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogInternalError(err error, chain []string) {
	l.Logger.Error("internal error", zap.Error(err), zap.Strings("chain", chain))
}

func (l zapLogger) LogImplicitFlushError(err error) {
	l.Logger.Error("error while flushing implicitly", zap.Error(err))
}

// NewZapLogger logs through a zap logger.
func NewZapLogger(l *zap.Logger) Logger {
	return zapLogger{l.Named("broute")}
}

type TestLogger struct {
	tb testing.TB

	NumLogInternalError      int64
	NumLogImplicitFlushError int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogInternalError(err error, chain []string) {
	atomic.AddInt64(&l.NumLogInternalError, 1)
	l.tb.Logf("broute: internal error: %s [%s]", err, strings.Join(chain, " <- "))
}

func (l *TestLogger) LogImplicitFlushError(err error) {
	atomic.AddInt64(&l.NumLogImplicitFlushError, 1)
	l.tb.Logf("broute: error while flushing implicitly: %s", err)
}

var (
	_ Logger = &TestLogger{}
	_ Logger = zapLogger{}
)
