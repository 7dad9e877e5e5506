package jsongen

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/jsongen/cache"
	"github.com/wippyai/jsongen/service"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the engine logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the engine logger and the loggers of the cache and
// service packages. This must be called before any engine is created.
func SetLogger(l *zap.Logger) {
	logger = l
	cache.SetLogger(l.Named("cache"))
	service.SetLogger(l.Named("service"))
}
