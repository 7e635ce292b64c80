// Package logrus adapts a logrus entry to chicache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/chicache"
)

var _ chicache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l with a "component=chicache" field.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: l.WithField("component", "chicache")}
}

func (l Logger) entry(f chicache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	fs := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			if _, ok := v.(error); ok {
				continue
			}
		}
		fs[k] = v
	}
	return e.WithFields(fs)
}

func (l Logger) Debug(msg string, f chicache.Fields) { l.entry(f).Debug(msg) }
func (l Logger) Info(msg string, f chicache.Fields)  { l.entry(f).Info(msg) }
func (l Logger) Warn(msg string, f chicache.Fields)  { l.entry(f).Warn(msg) }
func (l Logger) Error(msg string, f chicache.Fields) { l.entry(f).Error(msg) }
