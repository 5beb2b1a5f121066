package utils

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the level and encoding of the process-wide logger
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

var (
	baseMu     sync.RWMutex
	baseLogger = zap.NewNop()
)

// ConfigureLogging builds the process-wide zap logger. Loggers created with
// NewLogger afterwards write through it.
func ConfigureLogging(cfg LogConfig) error {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	switch cfg.Format {
	case "", "json":
		zcfg = zap.NewProductionConfig()
	case "console":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	baseMu.Lock()
	baseLogger = logger
	baseMu.Unlock()
	return nil
}

// SetBaseLogger replaces the process-wide logger, mainly for tests
func SetBaseLogger(l *zap.Logger) {
	baseMu.Lock()
	baseLogger = l
	baseMu.Unlock()
}

// SyncLogging flushes buffered log entries
func SyncLogging() {
	baseMu.RLock()
	defer baseMu.RUnlock()
	_ = baseLogger.Sync()
}

// Logger provides structured logging with context
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a new logger with a given prefix
func NewLogger(prefix string) *Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return &Logger{sugar: baseLogger.Named(prefix).Sugar()}
}

// With returns a child logger that always carries the given key-value pairs
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keyvals...)}
}

// Info logs an informational message
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.sugar.Infow(msg, keyvals...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.sugar.Errorw(msg, keyvals...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.sugar.Warnw(msg, keyvals...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.sugar.Debugw(msg, keyvals...)
}
