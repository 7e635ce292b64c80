//go:build go1.21

package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/chicache"
)

func TestAttrsSortedAndLevelFiltered(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo})
	l := New(stdslog.New(h))

	l.Debug("hidden", nil)
	l.Info("erased keys by mask", chicache.Fields{"n": 3, "mask": "user:*"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line not filtered: %s", out)
	}
	if !strings.Contains(out, `component=chicache mask=user:* n=3`) {
		t.Fatalf("unexpected output: %s", out)
	}
}
