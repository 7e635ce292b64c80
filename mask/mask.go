// Package mask translates glob-style key masks into matching patterns.
//
// The mask alphabet is deliberately small:
//
//	*  any run of characters (including none)
//	?  exactly one character
//
// Every other character is a literal. Keys are usually colon-delimited
// ("type:id:field") and ':' carries no special meaning.
package mask

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var ErrEmpty = errors.New("mask: empty mask")

// Pattern is a compiled mask. It is immutable and safe for concurrent use.
type Pattern struct {
	source string
	regex  string
	native string
	prefix string
	g      glob.Glob
}

// Compile translates m into a Pattern.
func Compile(m string) (Pattern, error) {
	return CompileWithPrefix("", m)
}

// CompileWithPrefix compiles prefix+m where prefix is matched literally,
// even if it contains '*' or '?'.
func CompileWithPrefix(prefix, m string) (Pattern, error) {
	if m == "" {
		return Pattern{}, ErrEmpty
	}

	var re, native, gl strings.Builder
	re.WriteString(`(?s)^`)
	re.WriteString(regexp.QuoteMeta(prefix))
	native.WriteString(escapeNative(prefix))
	gl.WriteString(glob.QuoteMeta(prefix))

	lit := prefix
	wild := false
	for _, r := range m {
		switch r {
		case '*':
			re.WriteString(`.*`)
			native.WriteByte('*')
			gl.WriteByte('*')
			wild = true
		case '?':
			re.WriteByte('.')
			native.WriteByte('?')
			gl.WriteByte('?')
			wild = true
		default:
			s := string(r)
			re.WriteString(regexp.QuoteMeta(s))
			native.WriteString(escapeNative(s))
			gl.WriteString(glob.QuoteMeta(s))
			if !wild {
				lit += s
			}
		}
	}
	re.WriteByte('$')

	g, err := glob.Compile(gl.String())
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{
		source: prefix + m,
		regex:  re.String(),
		native: native.String(),
		prefix: lit,
		g:      g,
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(m string) Pattern {
	p, err := Compile(m)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the mask the pattern was built from (with any prefix).
func (p Pattern) String() string { return p.source }

// Regexp returns an anchored regular expression equivalent to the mask.
func (p Pattern) Regexp() string { return p.regex }

// Native returns the mask in Redis glob syntax (KEYS/SCAN MATCH).
func (p Pattern) Native() string { return p.native }

// Prefix returns the literal run before the first wildcard. Drivers with
// ordered keyspaces may seek to it.
func (p Pattern) Prefix() string { return p.prefix }

// Literal reports whether the mask contains no wildcards.
func (p Pattern) Literal() bool { return p.prefix == p.source }

// Match reports whether key matches the mask.
func (p Pattern) Match(key string) bool {
	if p.g == nil {
		return false
	}
	return p.g.Match(key)
}

// escapeNative escapes the characters that are special to Redis glob matching
// but literal in a mask.
func escapeNative(s string) string {
	if !strings.ContainsAny(s, `[]\*?^`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '[', ']', '\\', '*', '?', '^':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
