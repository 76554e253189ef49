// Package logging provides the process-wide logger used by every agentmem
// binary. It wraps logrus so call sites keep the printf-style idiom used
// throughout the codebase (Info/Warn/Error/Debug with fmt verbs) while giving
// us structured JSON output for the long-lived memd server and plain text for
// the short-lived memhook process.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	std = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Options configures process-wide logging. JSON selects a structured
// formatter suitable for memd, where output is consumed by log collectors
// rather than a human terminal.
type Options struct {
	Debug  bool
	JSON   bool
	Output io.Writer
}

// Init (re)configures the package-level logger. Safe to call once at
// startup before any goroutines have started logging.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	l := logrus.New()
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}
	if opts.Debug {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	std = l
}

func get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// WithField returns a child entry carrying a structured field, e.g. the
// project identity or component name, without disturbing the printf idiom
// used at most call sites.
func WithField(key string, value interface{}) *logrus.Entry {
	return get().WithField(key, value)
}

// WithFields returns a child entry carrying several structured fields.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return get().WithFields(logrus.Fields(fields))
}

func Debug(format string, args ...interface{}) { get().Debugf(format, args...) }
func Info(format string, args ...interface{})  { get().Infof(format, args...) }
func Warn(format string, args ...interface{})  { get().Warnf(format, args...) }
func Error(format string, args ...interface{}) { get().Errorf(format, args...) }

// Fatal logs at error level and exits with status 1. Reserved for
// unrecoverable startup failures in cmd/ main functions.
func Fatal(format string, args ...interface{}) { get().Fatalf(format, args...) }
