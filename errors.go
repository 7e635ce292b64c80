package chicache

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by Keys and Erase when the driver lacks the
	// capability. It is never retried or swallowed.
	ErrUnsupported = errors.New("chicache: operation not supported by this driver")

	// ErrInvalidConfig is returned by New for unusable Options.
	ErrInvalidConfig = errors.New("chicache: invalid configuration")
)

// DriverError wraps a failure reported by the driver. The cause is not
// interpreted; Unwrap exposes it for errors.Is/As.
type DriverError struct {
	Op  string // get, set, del, expire, keys, erase
	Key string // logical key or mask; empty when not applicable
	Err error
}

func (e *DriverError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("chicache: driver %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("chicache: driver %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func unsupported(op string) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, op)
}
