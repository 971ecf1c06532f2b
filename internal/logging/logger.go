// Package logging provides config-driven categorized logging for mediachat.
// Loggers are backed by zap and write to a single file with the category as
// the logger name. When debug_mode is false every logger is a no-op, which
// keeps the terminal UI clean.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mediachat/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config loading
	CategorySession Category = "session" // Dispatch cycles, conversation state
	CategoryAPI     Category = "api"     // HTTP calls to the assistant service
	CategoryUI      Category = "ui"      // Terminal UI events
	CategoryServer  Category = "server"  // Reference assistant service
	CategoryStore   Category = "store"   // Catalog database
)

// Logger is a category-scoped logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu   sync.RWMutex
	base = zap.NewNop()
	cfg  config.LoggingConfig
)

// DefaultLogPath returns the log file used when none is configured.
func DefaultLogPath() string {
	return filepath.Join(config.DefaultDir(), "logs", "mediachat.log")
}

// Initialize builds the shared zap logger from cfg.
// With debug_mode off it installs a no-op logger and returns nil.
func Initialize(c config.LoggingConfig) error {
	if !c.DebugMode {
		replace(zap.NewNop(), c)
		return nil
	}

	path := c.File
	if path == "" {
		path = DefaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Format == "console" || c.Format == "text" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}
	zc.Sampling = nil

	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	replace(l, c)

	Get(CategoryBoot).Info("logging initialized: file=%s level=%s format=%s", path, level, zc.Encoding)
	return nil
}

// UseLogger installs an already-built zap logger with every category enabled.
// The CLI uses it for --verbose stderr output outside the TUI.
func UseLogger(l *zap.Logger) {
	replace(l, config.LoggingConfig{DebugMode: true})
}

// SetCore routes all categories to core and returns a func restoring the previous state.
func SetCore(core zapcore.Core) (restore func()) {
	mu.Lock()
	prevBase, prevCfg := base, cfg
	mu.Unlock()

	replace(zap.New(core), config.LoggingConfig{DebugMode: true})
	return func() { replace(prevBase, prevCfg) }
}

func replace(l *zap.Logger, c config.LoggingConfig) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	cfg = c
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return cfg.IsCategoryEnabled(string(category))
}

// Get returns a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}
	mu.RLock()
	defer mu.RUnlock()
	return &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
}

// Sync flushes buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}

// With returns a logger carrying structured key/value fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}
