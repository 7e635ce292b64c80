package chicache

import (
	"strings"

	"github.com/unkn0wn-root/chicache/driver"
)

// EraseStrategy selects how Erase removes keys matching a mask.
type EraseStrategy string

const (
	// EraseAuto picks EraseAtomic when the driver supports it, then
	// EraseEnumerate, then EraseNone.
	EraseAuto EraseStrategy = ""

	// EraseAtomic deletes all matches in one driver call (a Lua script on Redis).
	EraseAtomic EraseStrategy = "lua"

	// EraseEnumerate lists matches and deletes them one by one. A key written
	// between the listing and its deletion may survive.
	EraseEnumerate EraseStrategy = "keys"

	// EraseNone makes Erase return ErrUnsupported.
	EraseNone EraseStrategy = "none"
)

// ParseEraseStrategy accepts the configuration names of a strategy:
// "lua", "script", "atomic", "keys", "enumerate", "none", "auto" or "".
func ParseEraseStrategy(s string) (EraseStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return EraseAuto, nil
	case "lua", "script", "atomic":
		return EraseAtomic, nil
	case "keys", "enumerate":
		return EraseEnumerate, nil
	case "none":
		return EraseNone, nil
	default:
		return "", invalidConfig("unknown erase strategy %q", s)
	}
}

// resolveErase checks s against what the driver can do.
func resolveErase(s EraseStrategy, caps driver.Capabilities) (EraseStrategy, error) {
	s, err := ParseEraseStrategy(string(s))
	if err != nil {
		return "", err
	}
	switch s {
	case EraseAuto:
		switch {
		case caps.AtomicErase:
			return EraseAtomic, nil
		case caps.Keys:
			return EraseEnumerate, nil
		default:
			return EraseNone, nil
		}
	case EraseAtomic:
		if !caps.AtomicErase {
			return "", invalidConfig("erase strategy %q needs a driver with atomic pattern erase", s)
		}
	case EraseEnumerate:
		if !caps.Keys {
			return "", invalidConfig("erase strategy %q needs a driver with key listing", s)
		}
	}
	return s, nil
}
