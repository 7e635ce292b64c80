package bolt

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/chicache/driver"
	"github.com/unkn0wn-root/chicache/mask"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func openTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "cache.bbolt")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	s.now = clk.now
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, clk
}

func seed(t *testing.T, s *Store, ttl time.Duration, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if err := s.Set(context.Background(), k, []byte("v:"+k), ttl); err != nil {
			t.Fatalf("Set(%q): %v", k, err)
		}
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatalf("expected error without path")
	}
}

func TestCapabilities(t *testing.T) {
	s, _ := openTestStore(t)
	caps := driver.Inspect(s)
	if !caps.Keys || !caps.AtomicErase || !caps.Expire {
		t.Fatalf("caps=%+v", caps)
	}
}

func TestGetSetDelAndEmptyValue(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	if err := s.Set(ctx, "empty", []byte{}, time.Minute); err != nil {
		t.Fatal(err)
	}
	b, ok, err := s.Get(ctx, "empty")
	if err != nil || !ok || b == nil || len(b) != 0 {
		t.Fatalf("empty value: ok=%v err=%v b=%v", ok, err, b)
	}
	if err := s.Del(ctx, "empty"); err != nil {
		t.Fatal(err)
	}
	if err := s.Del(ctx, "empty"); err != nil {
		t.Fatalf("Del missing: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "empty"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestTTLAndExpire(t *testing.T) {
	ctx := context.Background()
	s, clk := openTestStore(t)
	seed(t, s, 10*time.Second, "a", "b")

	if err := s.Expire(ctx, "b", time.Hour); err != nil {
		t.Fatal(err)
	}
	clk.advance(11 * time.Second)

	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("a should be expired")
	}
	if b, ok, _ := s.Get(ctx, "b"); !ok || string(b) != "v:b" {
		t.Fatalf("b should survive after Expire, ok=%v b=%q", ok, b)
	}
	if err := s.Expire(ctx, "a", time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("Expire must not resurrect an expired key")
	}
}

func TestKeysUsesPrefixAndMask(t *testing.T) {
	ctx := context.Background()
	s, clk := openTestStore(t)
	seed(t, s, time.Minute, "type:x1:k1:x3", "type:x1:k2:x3", "type:x1:k3:x3", "type:x1:k3:x2", "other:k1:x3")
	seed(t, s, time.Second, "type:x1:k9:x3")
	clk.advance(2 * time.Second)

	keys, err := s.Keys(ctx, mask.MustCompile("type:x1:k*:x3"))
	if err != nil {
		t.Fatal(err)
	}
	// bbolt iterates in byte order
	if got := strings.Join(keys, ","); got != "type:x1:k1:x3,type:x1:k2:x3,type:x1:k3:x3" {
		t.Fatalf("keys=%s", got)
	}

	all, err := s.Keys(ctx, mask.MustCompile("*:k1:x3"))
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(all)
	if got := strings.Join(all, ","); got != "other:k1:x3,type:x1:k1:x3" {
		t.Fatalf("keys=%s", got)
	}
}

func TestEraseMatching(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	seed(t, s, time.Minute, "type:x1:k1:x3", "type:x1:k2:x3", "type:x1:k3:x3", "type:x1:k3:x2")

	n, err := s.EraseMatching(ctx, mask.MustCompile("type:x1:k*:x3"))
	if err != nil || n != 3 {
		t.Fatalf("EraseMatching: n=%d err=%v", n, err)
	}
	if _, ok, _ := s.Get(ctx, "type:x1:k3:x3"); ok {
		t.Fatalf("matching key survived")
	}
	if _, ok, _ := s.Get(ctx, "type:x1:k3:x2"); !ok {
		t.Fatalf("non-matching key erased")
	}
}

func TestSweep(t *testing.T) {
	s, clk := openTestStore(t)
	seed(t, s, time.Second, "a", "b")
	seed(t, s, 0, "forever")
	clk.advance(time.Minute)

	n, err := s.Sweep()
	if err != nil || n != 2 {
		t.Fatalf("Sweep: n=%d err=%v", n, err)
	}
	if _, ok, _ := s.Get(context.Background(), "forever"); !ok {
		t.Fatalf("entry without deadline swept")
	}
}

func TestCloseTwiceWithCleanupLoop(t *testing.T) {
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "c.bbolt"), CleanupInterval: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
