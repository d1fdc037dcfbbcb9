package observability

import (
	"context"
	"log/slog"
	"sync"
)

// Config captures observability toggles.
type Config struct {
	Enabled bool
}

// ShutdownFunc tears down any observability exporters.
type ShutdownFunc func(context.Context) error

var (
	loggerMu sync.RWMutex
	obsLog   *slog.Logger
	obsState Config
)

func currentLogger() (*slog.Logger, Config) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return obsLog, obsState
}

// Setup installs the logger spans and metrics are written to. When disabled,
// StartSpan and RecordMetric become no-ops.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	loggerMu.Lock()
	obsLog = logger
	obsState = cfg
	loggerMu.Unlock()

	if logger != nil {
		if cfg.Enabled {
			logger.InfoContext(ctx, "[OBSERVABILITY] span and metric logging enabled")
		} else {
			logger.InfoContext(ctx, "[OBSERVABILITY] disabled")
		}
	}
	return func(context.Context) error {
		loggerMu.Lock()
		obsLog = nil
		obsState = Config{}
		loggerMu.Unlock()
		return nil
	}, nil
}
