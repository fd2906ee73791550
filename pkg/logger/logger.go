package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type contextKey string

// RequestIDKey is the context key carrying the X-Request-ID of a call
const RequestIDKey contextKey = "request_id"

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	return NewWithOutput(level, os.Stdout)
}

// NewWithOutput creates a logger writing JSON lines to out
func NewWithOutput(level string, out io.Writer) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)

	return &Logger{Logger: log}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return NewWithOutput("panic", io.Discard)
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithContext creates a logger with context-aware fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(l.Logger)
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	return entry
}

// HTTPRequest logs an outbound or inbound HTTP exchange
func (l *Logger) HTTPRequest(ctx context.Context, method, path string, statusCode int, duration int64, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"status_code":  statusCode,
		"duration_ms":  duration,
	})
	if len(details) > 0 {
		entry = entry.WithField("details", details)
	}

	switch {
	case statusCode == 0 || statusCode >= 500:
		entry.Warn("HTTP request failed")
	case statusCode >= 400:
		entry.Info("HTTP request completed with error")
	default:
		entry.Debug("HTTP request completed")
	}
}

// CacheEvent logs a query cache transition at debug level
func (l *Logger) CacheEvent(event, key string, fields map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"cache": true,
		"event": event,
		"key":   key,
	})
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Debug("Cache event")
}
