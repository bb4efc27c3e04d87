// Package logging provides config-driven categorized logging for the recorder.
// Each category gets its own named zap logger; categories can be switched off
// individually from the logging section of the config file.
// Until Initialize is called every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup, config, shutdown
	CategorySession     Category = "session"     // Session loop, dispatch, lifecycle
	CategoryRecorder    Category = "recorder"    // Organic action capture and signals
	CategoryCodegen     Category = "codegen"     // Source regeneration and output mirroring
	CategoryCallLog     Category = "calllog"     // Call-log transitions and audit store
	CategoryExecutor    Category = "executor"    // Ad hoc command execution
	CategorySandbox     Category = "sandbox"     // Arbitrary code evaluation
	CategoryBrowser     Category = "browser"     // Browser automation, DOM events
	CategorySurface     Category = "surface"     // Control-surface transport
	CategoryPerformance Category = "performance" // Slow operations
)

// Config mirrors config.LoggingConfig to avoid an import cycle.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	File       string // empty writes to stderr
	DebugMode  bool
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	cfg     Config
	loggers = make(map[Category]*Logger)
)

// Initialize builds the root logger from cfg. It may be called again to
// reconfigure; existing category loggers are rebuilt lazily.
func Initialize(c Config) error {
	level := zap.NewAtomicLevelAt(parseLevel(c.Level, c.DebugMode))

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = "json"
	if strings.EqualFold(c.Format, "console") {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = []string{c.File}
	}

	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	cfg = c
	old := root
	root = l
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	_ = old.Sync()
	Get(CategoryBoot).Info("logging initialized: level=%s format=%s", level.Level(), zc.Encoding)
	return nil
}

// SetRoot installs an already-built zap logger, as the CLI does.
func SetRoot(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	root = l
	loggers = make(map[Category]*Logger)
	mu.Unlock()
}

func parseLevel(s string, debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()

	if cfg.Categories == nil {
		return true
	}
	enabled, exists := cfg.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	enabled := IsCategoryEnabled(category)

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	base := root
	if !enabled {
		base = zap.NewNop()
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered entries (call at shutdown).
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

func Boot(format string, args ...interface{})     { Get(CategoryBoot).Info(format, args...) }
func BootWarn(format string, args ...interface{}) { Get(CategoryBoot).Warn(format, args...) }

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }
func SessionWarn(format string, args ...interface{})  { Get(CategorySession).Warn(format, args...) }
func SessionError(format string, args ...interface{}) { Get(CategorySession).Error(format, args...) }

func Recorder(format string, args ...interface{})      { Get(CategoryRecorder).Info(format, args...) }
func RecorderDebug(format string, args ...interface{}) { Get(CategoryRecorder).Debug(format, args...) }

func Codegen(format string, args ...interface{})      { Get(CategoryCodegen).Info(format, args...) }
func CodegenDebug(format string, args ...interface{}) { Get(CategoryCodegen).Debug(format, args...) }
func CodegenWarn(format string, args ...interface{})  { Get(CategoryCodegen).Warn(format, args...) }
func CodegenError(format string, args ...interface{}) { Get(CategoryCodegen).Error(format, args...) }

func CallLogDebug(format string, args ...interface{}) { Get(CategoryCallLog).Debug(format, args...) }
func CallLogWarn(format string, args ...interface{})  { Get(CategoryCallLog).Warn(format, args...) }

func Executor(format string, args ...interface{})      { Get(CategoryExecutor).Info(format, args...) }
func ExecutorDebug(format string, args ...interface{}) { Get(CategoryExecutor).Debug(format, args...) }
func ExecutorWarn(format string, args ...interface{})  { Get(CategoryExecutor).Warn(format, args...) }

func SandboxDebug(format string, args ...interface{}) { Get(CategorySandbox).Debug(format, args...) }
func SandboxWarn(format string, args ...interface{})  { Get(CategorySandbox).Warn(format, args...) }

func Browser(format string, args ...interface{})      { Get(CategoryBrowser).Info(format, args...) }
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }
func BrowserWarn(format string, args ...interface{})  { Get(CategoryBrowser).Warn(format, args...) }
func BrowserError(format string, args ...interface{}) { Get(CategoryBrowser).Error(format, args...) }

func Surface(format string, args ...interface{})      { Get(CategorySurface).Info(format, args...) }
func SurfaceDebug(format string, args ...interface{}) { Get(CategorySurface).Debug(format, args...) }
func SurfaceWarn(format string, args ...interface{})  { Get(CategorySurface).Warn(format, args...) }
func SurfaceError(format string, args ...interface{}) { Get(CategorySurface).Error(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(CategoryPerformance).Warn("%s/%s took %v (threshold: %v)", t.category, t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
