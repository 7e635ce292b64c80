package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/chicache"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeys(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.SelfHeal("user:secret", "corrupt")

	out := buf.String()
	if strings.Contains(out, "secret") || !strings.Contains(out, "reason=corrupt") {
		t.Fatalf("output=%s", out)
	}

	buf.Reset()
	h = New(l, Options{Redact: func(string) string { return "X" }})
	h.Recompute("user:1", true)
	if !strings.Contains(buf.String(), "key=X stale=true") {
		t.Fatalf("custom redactor ignored: %s", buf.String())
	}
}

func TestSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{SelfHealEvery: 3})
	for i := 0; i < 9; i++ {
		h.SelfHeal("k", "expired")
	}
	if n := strings.Count(buf.String(), "chicache.self_heal"); n != 3 {
		t.Fatalf("logged %d of 9 with sampling 3", n)
	}
}

func TestErasedAndDriverError(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.Erased("user:*", chicache.EraseEnumerate, 4)
	h.DriverError("get", errors.New("refused"))

	out := buf.String()
	for _, want := range []string{"mask=user:*", "strategy=keys", "n=4", "op=get", "err=refused"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}

	New(nil, Options{}).DriverError("get", errors.New("nil logger is a no-op"))
}
