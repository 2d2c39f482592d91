package log

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/simplify/pkg/errors"
)

var (
	baseMu sync.RWMutex
	base   = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// SetupLogger configures the process logger to write JSON records at the
// given level ("debug", "info", "warn", "error") to w. Library warnings
// raised through pkg/errors.Warn are routed to the same logger.
func SetupLogger(level string, w io.Writer) error {
	lvl, err := ToLogLevel(level)
	if err != nil {
		return err
	}
	install(zerolog.New(w).With().Timestamp().Logger().Level(lvl))
	return nil
}

// SetupConsoleLogger is SetupLogger with human-readable console output.
func SetupConsoleLogger(level string, w io.Writer) error {
	lvl, err := ToLogLevel(level)
	if err != nil {
		return err
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	install(zerolog.New(console).With().Timestamp().Logger().Level(lvl))
	return nil
}

func install(zl zerolog.Logger) {
	baseMu.Lock()
	base = zl
	baseMu.Unlock()

	errors.SetZerologWarnFunc(func(w error) {
		e := zl.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			e = e.EmbedObject(m)
		}
		e.Msg(w.Error())
	})
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// GetLogger returns the process logger.
func GetLogger() Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return &zerologLogger{zl: base}
}

// GetLoggerWithName returns the process logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return &zerologLogger{zl: zl}
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	emit(l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	emit(l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	emit(l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	emit(l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	if len(fields) == 0 {
		return l
	}
	return &zerologLogger{zl: l.zl.With().Fields(pairs(fields)).Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerolog(level)
}

func toZerolog(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// zerologProvider is the LoggerProvider backed by the process logger.
type zerologProvider struct{}

// DefaultProvider returns the LoggerProvider backed by the process logger.
func DefaultProvider() LoggerProvider {
	return zerologProvider{}
}

func (zerologProvider) GetLogger() Logger { return GetLogger() }

func (zerologProvider) GetLoggerWithName(name string) Logger { return GetLoggerWithName(name) }

func (zerologProvider) SetLevel(level Level) {
	baseMu.Lock()
	base = base.Level(toZerolog(level))
	baseMu.Unlock()
}
