package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()

	// Set output to stderr to avoid mixing with MCP protocol on stdout
	logger.SetOutput(os.Stderr)

	// Set log level from environment variable
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Use JSON formatter for structured logging
	if os.Getenv("LOG_FORMAT") == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   false,
		})
	}
}

// GetLogger returns the configured logger instance
func GetLogger() *logrus.Logger {
	return logger
}

// WithField creates a new logger entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return logger.WithField(key, value)
}

// WithFields creates a new logger entry with multiple fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// WithApp creates a new logger entry scoped to one application's loop
func WithApp(name string) *logrus.Entry {
	return logger.WithField("application", name)
}

// Info logs an info message
func Info(args ...interface{}) {
	logger.Info(args...)
}

// Debug logs a debug message
func Debug(args ...interface{}) {
	logger.Debug(args...)
}

// Warn logs a warning message
func Warn(args ...interface{}) {
	logger.Warn(args...)
}

// Error logs an error message
func Error(args ...interface{}) {
	logger.Error(args...)
}

// Fatal logs a fatal message and exits
func Fatal(args ...interface{}) {
	logger.Fatal(args...)
}
