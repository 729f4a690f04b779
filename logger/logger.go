package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Fields mirrors logrus.Fields so callers don't import logrus directly.
type Fields map[string]interface{}

// Log wraps logrus.Logger.
type Log struct {
	*logrus.Logger
}

// Entry wraps logrus.Entry.
type Entry struct {
	*logrus.Entry
}

var globalLogger *Log

func init() {
	globalLogger = New(os.Stderr)
}

// New builds a logger writing to w. The level comes from LOG_LEVEL and defaults to info.
func New(w io.Writer) *Log {
	l := logrus.New()
	l.SetOutput(w)
	l.SetReportCaller(true)
	l.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
	l.SetFormatter(textFormatter())
	return &Log{Logger: l}
}

// GetLogger returns the process logger.
func GetLogger() *Log {
	return globalLogger
}

// Configure applies level and format ("text" or "json"). LOG_LEVEL wins over level.
func (l *Log) Configure(level, format string) error {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if level != "" {
		lvl, err := logrus.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		l.SetLevel(lvl)
	}

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(textFormatter())
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

func (l *Log) WithError(err error) *Entry {
	return &Entry{Entry: l.Logger.WithError(err)}
}

func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

func parseLevel(s string) logrus.Level {
	if s == "" {
		return logrus.InfoLevel
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(s))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  time.RFC3339,
		CallerPrettyfier: callerPrettyfier,
	}
}

func callerPrettyfier(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}
