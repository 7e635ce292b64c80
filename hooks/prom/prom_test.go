package prom

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/unkn0wn-root/chicache"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg, "")
	if err != nil {
		t.Fatal(err)
	}

	h.SelfHeal("k", "corrupt")
	h.SelfHeal("k", "corrupt")
	h.SelfHeal("k", "expired")
	h.Recompute("k", true)
	h.Recompute("k", false)
	h.Erased("user:*", chicache.EraseAtomic, 5)
	h.Erased("user:*", chicache.EraseAtomic, 2)
	h.DriverError("get", errors.New("down"))

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"self heal corrupt", h.selfHeal.WithLabelValues("corrupt"), 2},
		{"self heal expired", h.selfHeal.WithLabelValues("expired"), 1},
		{"recompute stale", h.recompute.WithLabelValues("stale"), 1},
		{"recompute miss", h.recompute.WithLabelValues("miss"), 1},
		{"erased lua", h.erased.WithLabelValues("lua"), 7},
		{"driver get", h.driverErrors.WithLabelValues("get"), 1},
	}
	for _, tc := range checks {
		if got := testutil.ToFloat64(tc.c); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n != 6 {
		t.Fatalf("series=%d err=%v", n, err)
	}
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg, "app"); err != nil {
		t.Fatal(err)
	}
	if _, err := New(reg, "app"); err == nil {
		t.Fatalf("expected AlreadyRegisteredError")
	}
}
