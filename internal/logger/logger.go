// Package logger wraps logrus with the formatting conventions used across
// the service: human-readable text locally, JSON elsewhere.
package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is a configured logrus entry
type Logger struct {
	*logrus.Entry
}

// New builds a logger from ENVIRONMENT and LOG_LEVEL
func New() *Logger {
	base := logrus.New()

	env := os.Getenv("ENVIRONMENT")
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(os.Stdout)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Entry: logrus.NewEntry(base)}
}

// Discard returns a logger that swallows all output. Used in tests.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(discardWriter{})
	return &Logger{Entry: logrus.NewEntry(base)}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// WithAnalysis attaches the identifying fields for one analysis request
func (l *Logger) WithAnalysis(callID, dimension, rubricVersion string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"call_id":        callID,
		"dimension":      dimension,
		"rubric_version": rubricVersion,
	})
}

// WithError standardizes error logging
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
