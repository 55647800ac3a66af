// Package logger exposes the process-wide structured logger, following the
// teacher's logger.Log convention (see agent/agent.go: logger.Log.Debugf,
// logger.Log.Warnf, logger.Log.Errorf).
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of *logrus.Entry every component logs through,
// narrowed so a host can plug in its own structured logger (spec: logging
// is an ambient concern this project carries even though host-side
// logging setup is out of this spec's scope).
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	WithFields(fields logrus.Fields) *logrus.Entry
}

// Log is the package-level logger every component uses.
var Log Logger = defaultLogger()

func defaultLogger() Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l.WithField("component", "playhouse")
}

// SetLogger lets a host replace the default logger, e.g. to route through
// its own log aggregation pipeline.
func SetLogger(l Logger) {
	if l != nil {
		Log = l
	}
}

// SetLevel adjusts verbosity when Log is backed by a *logrus.Logger entry.
func SetLevel(level logrus.Level) {
	if e, ok := Log.(*logrus.Entry); ok {
		e.Logger.SetLevel(level)
	}
}
