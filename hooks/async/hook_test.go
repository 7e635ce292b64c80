package asynchook

import (
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/chicache"
)

type countHooks struct {
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (c *countHooks) add(e string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *countHooks) SelfHeal(k, r string)                             { c.add("heal:" + k + ":" + r) }
func (c *countHooks) Recompute(k string, _ bool)                       { c.add("recompute:" + k) }
func (c *countHooks) Erased(m string, _ chicache.EraseStrategy, _ int) { c.add("erased:" + m) }
func (c *countHooks) DriverError(op string, _ error)                   { c.add("driver:" + op) }

func TestForwardsAndDrainsOnClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 16)

	h.SelfHeal("k", "corrupt")
	h.Recompute("k", true)
	h.Erased("user:*", chicache.EraseAtomic, 3)
	h.DriverError("get", errors.New("down"))
	h.Close()

	if len(inner.events) != 4 {
		t.Fatalf("events=%v", inner.events)
	}
	h.SelfHeal("late", "corrupt")
	if h.Dropped() != 1 {
		t.Fatalf("event after Close must be dropped, dropped=%d", h.Dropped())
	}
	h.Close()
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event may be held by the worker, one queued; the rest drop
	for i := 0; i < 10; i++ {
		h.SelfHeal("k", "corrupt")
	}
	if h.Dropped() < 8 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
	close(inner.block)
	h.Close()
	if got := len(inner.events); got+int(h.Dropped()) != 10 {
		t.Fatalf("delivered=%d dropped=%d", got, h.Dropped())
	}
}
