package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// Logger provides structured logging functionality
type Logger struct {
	slog *slog.Logger
}

// NewLogger creates a new structured logger writing JSON lines to output
func NewLogger(level string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: parseLogLevel(level)})
	return &Logger{slog: slog.New(handler)}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog exposes the underlying logger for internal packages
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// WithFields returns a new log entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *LogEntryBuilder {
	return &LogEntryBuilder{
		logger: l,
		fields: fields,
	}
}

// WithField returns a new log entry with a single field
func (l *Logger) WithField(key string, value interface{}) *LogEntryBuilder {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithError returns a new log entry with an error field
func (l *Logger) WithError(err error) *LogEntryBuilder {
	return &LogEntryBuilder{
		logger: l,
		err:    err,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	l.log(slog.LevelDebug, message, nil, nil)
}

// Info logs an info message
func (l *Logger) Info(message string) {
	l.log(slog.LevelInfo, message, nil, nil)
}

// Warn logs a warning message
func (l *Logger) Warn(message string) {
	l.log(slog.LevelWarn, message, nil, nil)
}

// Error logs an error message
func (l *Logger) Error(message string) {
	l.log(slog.LevelError, message, nil, nil)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string) {
	l.log(slog.LevelError, message, nil, nil)
	os.Exit(1)
}

func (l *Logger) log(level slog.Level, message string, fields map[string]interface{}, err error) {
	ctx := context.Background()
	if !l.slog.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(fields)+2)
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	// Add caller information for errors and above
	if level >= slog.LevelError {
		if pc, file, line, ok := runtime.Caller(3); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				attrs = append(attrs, slog.String("caller", fmt.Sprintf("%s:%d (%s)", file, line, fn.Name())))
			} else {
				attrs = append(attrs, slog.String("caller", fmt.Sprintf("%s:%d", file, line)))
			}
		}
	}

	l.slog.LogAttrs(ctx, level, message, attrs...)
}

// LogEntryBuilder helps build log entries with fields
type LogEntryBuilder struct {
	logger *Logger
	fields map[string]interface{}
	err    error
}

// WithField adds a field to the log entry
func (b *LogEntryBuilder) WithField(key string, value interface{}) *LogEntryBuilder {
	if b.fields == nil {
		b.fields = make(map[string]interface{})
	}
	b.fields[key] = value
	return b
}

// WithFields adds multiple fields to the log entry
func (b *LogEntryBuilder) WithFields(fields map[string]interface{}) *LogEntryBuilder {
	if b.fields == nil {
		b.fields = make(map[string]interface{})
	}
	for k, v := range fields {
		b.fields[k] = v
	}
	return b
}

// WithError adds an error to the log entry
func (b *LogEntryBuilder) WithError(err error) *LogEntryBuilder {
	b.err = err
	return b
}

// Debug logs a debug message with fields
func (b *LogEntryBuilder) Debug(message string) {
	b.logger.log(slog.LevelDebug, message, b.fields, b.err)
}

// Info logs an info message with fields
func (b *LogEntryBuilder) Info(message string) {
	b.logger.log(slog.LevelInfo, message, b.fields, b.err)
}

// Warn logs a warning message with fields
func (b *LogEntryBuilder) Warn(message string) {
	b.logger.log(slog.LevelWarn, message, b.fields, b.err)
}

// Error logs an error message with fields
func (b *LogEntryBuilder) Error(message string) {
	b.logger.log(slog.LevelError, message, b.fields, b.err)
}

// Fatal logs a fatal message with fields and exits
func (b *LogEntryBuilder) Fatal(message string) {
	b.logger.log(slog.LevelError, message, b.fields, b.err)
	os.Exit(1)
}

// Global logger instance
var AppLogger = NewLogger("INFO", os.Stdout)

// InitializeLogger initializes the global logger and makes it the slog default
func InitializeLogger(config *Config) {
	var output io.Writer = os.Stdout

	if config.Environment == "production" {
		if err := os.MkdirAll("logs", 0755); err == nil {
			if file, err := os.OpenFile("logs/app.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err == nil {
				output = file
			}
		}
	}

	AppLogger = NewLogger(config.LogLevel, output)
	slog.SetDefault(AppLogger.Slog())
}
