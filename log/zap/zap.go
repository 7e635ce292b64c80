// Package zap adapts a *zap.Logger to chicache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/chicache"
)

var _ chicache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New wraps l, naming it "chicache". A nil l yields a no-op logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("chicache")}
}

func (z Logger) Debug(msg string, f chicache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f chicache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f chicache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f chicache.Fields) { z.L.Error(msg, fields(f)...) }

// fields converts f in key order; error values keep zap's error encoding.
func fields(f chicache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
