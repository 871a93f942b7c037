package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.Mutex
	logger  = zap.NewNop()
	enabled bool
)

// DefaultPath returns ~/.config/go-sonify/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-sonify", "debug.log")
}

// Enable starts debug logging to path (DefaultPath if empty)
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	// Truncate on start, zap only appends
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.Sampling = nil

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	logger = l
	enabled = true
	logger.Info("=== Debug logging started ===", zap.String("category", "debug"))
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	_ = logger.Sync()
	logger = zap.NewNop()
	enabled = false
}

// SetLogger replaces the underlying logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
	enabled = true
}

func current() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Log writes a debug message under category
func Log(category, format string, args ...any) {
	current().Debug(fmt.Sprintf(format, args...), zap.String("category", category))
}

// Warn logs recoverable misuse (bad transport calls, skipped tracks)
func Warn(category, format string, args ...any) {
	current().Warn(fmt.Sprintf(format, args...), zap.String("category", category))
}

// Error logs a failure together with its cause
func Error(category string, err error, format string, args ...any) {
	current().Error(fmt.Sprintf(format, args...), zap.String("category", category), zap.Error(err))
}

// LogEvery logs only every N calls (use for high-frequency events)
var (
	countersMu sync.Mutex
	counters   = make(map[string]int)
)

func LogEvery(n int, category, format string, args ...any) {
	countersMu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	countersMu.Unlock()

	if n > 0 && count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
