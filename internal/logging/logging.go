// Package logging wires structured logging for supercheck-core.
//
// Logger is a package-level *zap.SugaredLogger seeded with a safe no-op
// logger at init so callers never hit a nil pointer before Initialize runs.
// Components get their own named sub-logger the way a worker pool, a
// scheduler tick, a prober run, or an alert dispatch each want their log
// lines attributable: logging.Named("queue"), logging.Named("scheduler.job").
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger. JSON output is meant for production
// (machine-consumed log shipping); the console encoder is for local/dev use.
func Initialize(jsonOutput bool) error {
	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = cfg.Build()
	} else {
		zapLogger = zap.New(zapcore.NewCore(
			newMinimalEncoder(),
			zapcore.AddSync(os.Stdout),
			zap.InfoLevel,
		))
	}
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Named returns a component-scoped sub-logger, e.g. Named("dispatcher.job").
func Named(component string) *zap.SugaredLogger {
	return Logger.Named(component)
}

// Sync flushes any buffered log entries. Errors from Sync on stdout/stderr
// are generally ignorable (EINVAL on some platforms), but callers may still
// want to inspect them at shutdown.
func Sync() error {
	if Logger != nil {
		return Logger.Sync()
	}
	return nil
}
