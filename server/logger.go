package server

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	outputMu   sync.RWMutex
	baseLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	logFile    *os.File
)

// Logger provides structured logging for one server component
type Logger struct {
	component string
	userID    string
}

// NewLogger creates a new logger instance for a specific component
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// WithUser creates a new logger instance with a specific user ID
func (l *Logger) WithUser(userID string) *Logger {
	return &Logger{
		component: l.component,
		userID:    userID,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, data ...map[string]interface{}) {
	l.log(zerolog.DebugLevel, message, nil, data...)
}

// Info logs an info message
func (l *Logger) Info(message string, data ...map[string]interface{}) {
	l.log(zerolog.InfoLevel, message, nil, data...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, data ...map[string]interface{}) {
	l.log(zerolog.WarnLevel, message, nil, data...)
}

// Error logs an error message
func (l *Logger) Error(message string, err error, data ...map[string]interface{}) {
	l.log(zerolog.ErrorLevel, message, err, data...)
}

func (l *Logger) log(level zerolog.Level, message string, err error, data ...map[string]interface{}) {
	outputMu.RLock()
	zl := baseLogger
	outputMu.RUnlock()

	event := zl.WithLevel(level)
	if event == nil {
		return
	}
	event = event.Str("component", l.component)
	if l.userID != "" {
		event = event.Str("user_id", l.userID)
	}
	if err != nil {
		event = event.Err(err)
	}
	for _, d := range data {
		event = event.Fields(d)
	}
	event.Msg(message)
}

// Component loggers
var (
	ServerLogger   = NewLogger("Server")
	HubLogger      = NewLogger("Hub")
	ClientLogger   = NewLogger("Client")
	DatabaseLogger = NewLogger("Database")
	HTTPLogger     = NewLogger("HTTP")
)

// SetLogLevel sets the minimum level for every component logger
func SetLogLevel(level string) error {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)
	return nil
}

// SetLogOutput redirects structured logs to w
func SetLogOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	baseLogger = zerolog.New(w).With().Timestamp().Logger()
}

// LogToFile enables logging to a file instead of stderr, rotating files
// larger than 10MB
func LogToFile(filename string) error {
	if stat, err := os.Stat(filename); err == nil {
		if stat.Size() > 10*1024*1024 {
			rotatedName := filename + ".old"
			_ = os.Remove(rotatedName)
			_ = os.Rename(filename, rotatedName)
		}
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	outputMu.Lock()
	previous := logFile
	logFile = file
	baseLogger = zerolog.New(file).With().Timestamp().Logger()
	outputMu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return nil
}
