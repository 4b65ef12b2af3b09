package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// pkgLogger is the package-level debug logger used by orchestrator internals.
var pkgLogger *DebugLogger
var pkgLoggerMu sync.RWMutex

// setPackageLogger sets the package-level logger.
func setPackageLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// debugLog writes a message using the package-level logger.
func debugLog(format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	if l != nil {
		l.Log(format, args...)
	}
}

// DebugLogger provides file-backed debug logging for executor operations.
// A zero-path logger is a no-op.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDebugLogger creates a logger writing to the specified path.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &DebugLogger{file: f}, nil
}

// Log writes a timestamped line to the log file. No-op when the logger has
// no backing file.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.file, "%s %s\n", time.Now().Format("15:04:05.000"), line)
}

// Close closes the underlying log file, if any.
func (l *DebugLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
