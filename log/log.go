// Package log provides the leveled logging facade used across nettrace.
//
// The shape mirrors a package-level Logger struct with swappable function
// fields, so call sites never import the backend directly and tests can
// substitute their own logger. The default backend is logrus.
package log

import (
	"github.com/sirupsen/logrus"
)

// SetVerbose toggles trace/debug-level output from the default backend.
func SetVerbose(v bool) {
	if v {
		defaultLogger.SetLevel(logrus.TraceLevel)
	} else {
		defaultLogger.SetLevel(logrus.InfoLevel)
	}
}

// Fields is structured context attached to a single log line.
type Fields map[string]interface{}

// Entry is a logger bound to a set of Fields.
type Entry interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Logger is the set of leveled logging functions nettrace packages call
// through.
type Logger struct {
	Tracef     func(format string, args ...interface{})
	Debugf     func(format string, args ...interface{})
	Infof      func(format string, args ...interface{})
	Warnf      func(format string, args ...interface{})
	Errorf     func(format string, args ...interface{})
	WithFields func(fields Fields) Entry
}

var defaultLogger = logrus.New()

var logger = Logger{
	Tracef: defaultLogger.Tracef,
	Debugf: defaultLogger.Debugf,
	Infof:  defaultLogger.Infof,
	Warnf:  defaultLogger.Warnf,
	Errorf: defaultLogger.Errorf,
	WithFields: func(fields Fields) Entry {
		return defaultLogger.WithFields(logrus.Fields(fields))
	},
}

// SetLogger replaces the backend used by the package-level functions.
func SetLogger(l Logger) {
	logger = l
}

func Tracef(format string, args ...interface{}) {
	if logger.Tracef != nil {
		logger.Tracef(format, args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if logger.Debugf != nil {
		logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if logger.Infof != nil {
		logger.Infof(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if logger.Warnf != nil {
		logger.Warnf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if logger.Errorf != nil {
		logger.Errorf(format, args...)
	}
}

// WithFields returns an Entry carrying structured context for a burst of
// related log lines (e.g. one receiver's drain loop, one probe's lifecycle).
func WithFields(fields Fields) Entry {
	if logger.WithFields != nil {
		return logger.WithFields(fields)
	}
	return noopEntry{}
}

type noopEntry struct{}

func (noopEntry) Tracef(string, ...interface{}) {}
func (noopEntry) Debugf(string, ...interface{}) {}
func (noopEntry) Infof(string, ...interface{})  {}
func (noopEntry) Warnf(string, ...interface{})  {}
func (noopEntry) Errorf(string, ...interface{}) {}
