package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"example.com/staticserve/internal/config"
)

// LogFields carries structured context for a single log entry.
type LogFields map[string]interface{}

// Logger wraps two zerolog loggers: one for error/diagnostic records and an
// optional one for access records. Both emit JSON, one object per line.
type Logger struct {
	errorLog  zerolog.Logger
	accessLog *zerolog.Logger
	closers   []io.Closer
}

// NewLogger creates and configures a Logger from the logging configuration.
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging configuration cannot be nil")
	}

	l := &Logger{}

	errorTarget := ""
	if cfg.ErrorLog != nil {
		errorTarget = cfg.ErrorLog.Target
	}
	errorOutput, closer, err := openTarget(errorTarget, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("error log: %w", err)
	}
	if closer != nil {
		l.closers = append(l.closers, closer)
	}
	l.errorLog = zerolog.New(errorOutput).
		Level(levelFor(cfg.LogLevel)).
		With().Timestamp().Logger()

	if cfg.AccessLog != nil && (cfg.AccessLog.Enabled == nil || *cfg.AccessLog.Enabled) {
		accessOutput, closer, err := openTarget(cfg.AccessLog.Target, os.Stdout)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("access log: %w", err)
		}
		if closer != nil {
			l.closers = append(l.closers, closer)
		}
		accessLog := zerolog.New(accessOutput).With().Timestamp().Logger()
		l.accessLog = &accessLog
	}

	return l, nil
}

// NewDiscardLogger returns a Logger that drops everything. Used by tests and
// as a nil-safety fallback.
func NewDiscardLogger() *Logger {
	errorLog := zerolog.New(io.Discard)
	return &Logger{errorLog: errorLog}
}

// NewWriterLogger returns a Logger emitting error records to w at debug
// level, with access logging disabled. Intended for tests.
func NewWriterLogger(w io.Writer) *Logger {
	errorLog := zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	return &Logger{errorLog: errorLog}
}

func openTarget(target string, fallback *os.File) (io.Writer, io.Closer, error) {
	switch target {
	case "", "stdout":
		if target == "" {
			return fallback, nil, nil
		}
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	default:
		f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", target, err)
		}
		return f, f, nil
	}
}

func levelFor(level config.LogLevel) zerolog.Level {
	switch level {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelWarning:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields LogFields) {
	if len(fields) > 0 {
		ev = ev.Fields(map[string]interface{}(fields))
	}
	ev.Msg(msg)
}

// Debug logs a debug-level diagnostic record.
func (l *Logger) Debug(msg string, fields LogFields) {
	l.emit(l.errorLog.Debug(), msg, fields)
}

// Info logs an info-level diagnostic record.
func (l *Logger) Info(msg string, fields LogFields) {
	l.emit(l.errorLog.Info(), msg, fields)
}

// Warn logs a warning-level diagnostic record.
func (l *Logger) Warn(msg string, fields LogFields) {
	l.emit(l.errorLog.Warn(), msg, fields)
}

// Error logs an error-level diagnostic record.
func (l *Logger) Error(msg string, fields LogFields) {
	l.emit(l.errorLog.Error(), msg, fields)
}

// Access writes one access record. No-op when access logging is disabled.
func (l *Logger) Access(method, path string, status int, responseBytes int64, duration time.Duration) {
	if l.accessLog == nil {
		return
	}
	l.accessLog.Log().
		Str("method", method).
		Str("uri", path).
		Int("status", status).
		Int64("resp_bytes", responseBytes).
		Int64("duration_ms", duration.Milliseconds()).
		Send()
}

// Close closes any file-backed log targets.
func (l *Logger) Close() {
	for _, c := range l.closers {
		c.Close()
	}
	l.closers = nil
}
