// Package prom counts chicache hook events with Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/chicache"
)

type Hooks struct {
	selfHeal     *prometheus.CounterVec
	recompute    *prometheus.CounterVec
	erased       *prometheus.CounterVec
	driverErrors *prometheus.CounterVec
}

var _ chicache.Hooks = (*Hooks)(nil)

// New registers the counters on reg under namespace (default "chicache").
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	if namespace == "" {
		namespace = "chicache"
	}
	h := &Hooks{
		selfHeal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "self_heal_total",
			Help:      "Entries deleted on read, by reason.",
		}, []string{"reason"}),
		recompute: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_total",
			Help:      "Builder invocations by Fetch, by cause (miss or stale).",
		}, []string{"cause"}),
		erased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "erased_keys_total",
			Help:      "Keys removed by mask erase, by strategy.",
		}, []string{"strategy"}),
		driverErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "driver_errors_total",
			Help:      "Driver failures, by operation.",
		}, []string{"op"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{h.selfHeal, h.recompute, h.erased, h.driverErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) SelfHeal(_, reason string) { h.selfHeal.WithLabelValues(reason).Inc() }

func (h *Hooks) Recompute(_ string, stale bool) {
	cause := "miss"
	if stale {
		cause = "stale"
	}
	h.recompute.WithLabelValues(cause).Inc()
}

func (h *Hooks) Erased(_ string, strategy chicache.EraseStrategy, n int) {
	h.erased.WithLabelValues(string(strategy)).Add(float64(n))
}

func (h *Hooks) DriverError(op string, _ error) { h.driverErrors.WithLabelValues(op).Inc() }
