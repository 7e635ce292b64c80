package chicache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "expired", "value_decode"}
	SelfHeal(key, reason string)

	// Fetch is about to call the builder. stale is true inside the early
	// window, false on a miss or hard expiry.
	Recompute(key string, stale bool)

	// Erase removed n keys matching mask.
	Erased(mask string, strategy EraseStrategy, n int)

	// The driver failed; op ∈ {"get", "set", "del", "expire", "keys", "erase"}.
	DriverError(op string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)           {}
func (NopHooks) Recompute(string, bool)            {}
func (NopHooks) Erased(string, EraseStrategy, int) {}
func (NopHooks) DriverError(string, error)         {}
