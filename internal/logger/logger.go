package logger

import (
	"errors"
	"sync"
)

// ErrAlreadyInitialized is returned by Init while a logger is installed
var ErrAlreadyInitialized = errors.New("logger already initialized; call Shutdown() before re-initializing")

// registry holds the process-wide logger. One invocation runs one job, so
// a single installed logger is enough.
var registry struct {
	mu     sync.RWMutex
	logger Logger
}

// Init installs the process-wide logger
func Init(config Config) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.logger != nil {
		return ErrAlreadyInitialized
	}

	l, err := NewSlogLogger(config)
	if err != nil {
		return err
	}
	registry.logger = l
	return nil
}

// Get returns the installed logger, or a NullLogger before Init
func Get() Logger {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	if registry.logger == nil {
		return &NullLogger{}
	}
	return registry.logger
}

// With returns a child of the installed logger
func With(args ...any) Logger {
	return Get().With(args...)
}

// ForRun tags every line with the run id
func ForRun(runID string) Logger {
	return With("run", runID)
}

// Sync flushes the installed logger
func Sync() error {
	return Get().Sync()
}

// Shutdown uninstalls the logger and closes its log file. It is safe to
// call when nothing is installed.
func Shutdown() error {
	registry.mu.Lock()
	l := registry.logger
	registry.logger = nil
	registry.mu.Unlock()

	if l == nil {
		return nil
	}
	return l.Shutdown()
}

// NullLogger discards everything
type NullLogger struct{}

func (n *NullLogger) Debug(msg string, args ...any) {}
func (n *NullLogger) Info(msg string, args ...any)  {}
func (n *NullLogger) Warn(msg string, args ...any)  {}
func (n *NullLogger) Error(msg string, args ...any) {}
func (n *NullLogger) With(args ...any) Logger       { return n }
func (n *NullLogger) Sync() error                   { return nil }
func (n *NullLogger) Shutdown() error               { return nil }
