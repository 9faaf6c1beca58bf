// Package dcontext carries a structured logger through a
// context.Context so storage operations can log with whatever fields
// their caller attached.
package dcontext

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLogger   *logrus.Entry = logrus.NewEntry(logrus.StandardLogger())
	defaultLoggerMu sync.RWMutex
)

// Logger provides a leveled-logging interface.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)

	Info(args ...any)
	Infof(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	WithError(err error) *logrus.Entry
}

type loggerKey struct{}

// WithLogger creates a new context with the provided logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLoggerWithField returns the context's logger with an extra field,
// without affecting the context.
func GetLoggerWithField(ctx context.Context, key, value any) Logger {
	return getLogrusLogger(ctx).WithField(fmt.Sprint(key), value)
}

// GetLoggerWithFields returns the context's logger with extra fields,
// without affecting the context.
func GetLoggerWithFields(ctx context.Context, fields map[any]any) Logger {
	lfields := make(logrus.Fields, len(fields))
	for key, value := range fields {
		lfields[fmt.Sprint(key)] = value
	}
	return getLogrusLogger(ctx).WithFields(lfields)
}

// GetLogger returns the logger from the current context, if present,
// falling back to the process default.
func GetLogger(ctx context.Context) Logger {
	return getLogrusLogger(ctx)
}

// SetDefaultLogger sets the logger new contexts fall back to.
func SetDefaultLogger(logger Logger) {
	entry, ok := logger.(*logrus.Entry)
	if !ok {
		return
	}
	defaultLoggerMu.Lock()
	defaultLogger = entry
	defaultLoggerMu.Unlock()
}

func getLogrusLogger(ctx context.Context) *logrus.Entry {
	if lgr, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return lgr
	}
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}
