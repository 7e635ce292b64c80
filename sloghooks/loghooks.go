package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/chicache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery  uint64
	RecomputeEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr  atomic.Uint64
	recomputeCtr atomic.Uint64
}

var _ chicache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("chicache.self_heal",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) Recompute(key string, stale bool) {
	if h.l == nil || !sample(h.opts.RecomputeEvery, &h.recomputeCtr) {
		return
	}
	h.l.Debug("chicache.recompute",
		"key", h.redact(key),
		"stale", stale)
}

// Erased logs the mask verbatim; masks describe key families, not single keys.
func (h *Hooks) Erased(mask string, strategy chicache.EraseStrategy, n int) {
	if h.l == nil {
		return
	}
	h.l.Info("chicache.erased",
		"mask", mask,
		"strategy", string(strategy),
		"n", n)
}

func (h *Hooks) DriverError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("chicache.driver_error",
		"op", op,
		"err", err)
}
