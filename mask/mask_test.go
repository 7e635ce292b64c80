package mask

import (
	"errors"
	"regexp"
	"testing"
)

func TestColonDelimitedMask(t *testing.T) {
	p := MustCompile("type:x1:k*:x3")

	for _, k := range []string{"type:x1:k1:x3", "type:x1:k2:x3", "type:x1:k3:x3", "type:x1:k:x3", "type:x1:klong:x3"} {
		if !p.Match(k) {
			t.Fatalf("expected %q to match %q", k, p)
		}
	}
	for _, k := range []string{"type:x1:k3:x2", "type:x1:k3:x3:extra", "xtype:x1:k1:x3", "type:x1:j1:x3"} {
		if p.Match(k) {
			t.Fatalf("expected %q not to match %q", k, p)
		}
	}
}

func TestTranslationTable(t *testing.T) {
	cases := []struct {
		mask   string
		regex  string
		native string
		prefix string
	}{
		{"a:*", `(?s)^a:.*$`, `a:*`, "a:"},
		{"a:?:b", `(?s)^a:.:b$`, `a:?:b`, "a:"},
		{"*", `(?s)^.*$`, `*`, ""},
		{"user.1+", `(?s)^user\.1\+$`, `user.1+`, "user.1+"},
		{"x[1]:*", `(?s)^x\[1\]:.*$`, `x\[1\]:*`, "x[1]:"},
		{`a\b*`, `(?s)^a\\b.*$`, `a\\b*`, `a\b`},
		{"a^b?", `(?s)^a\^b.$`, `a\^b?`, "a^b"},
	}
	for _, tc := range cases {
		p, err := Compile(tc.mask)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tc.mask, err)
		}
		if p.Regexp() != tc.regex {
			t.Fatalf("Regexp(%q)=%q want %q", tc.mask, p.Regexp(), tc.regex)
		}
		if p.Native() != tc.native {
			t.Fatalf("Native(%q)=%q want %q", tc.mask, p.Native(), tc.native)
		}
		if p.Prefix() != tc.prefix {
			t.Fatalf("Prefix(%q)=%q want %q", tc.mask, p.Prefix(), tc.prefix)
		}
	}
}

func TestQuestionMarkIsExactlyOne(t *testing.T) {
	p := MustCompile("k?")
	if !p.Match("k1") || !p.Match("kж") {
		t.Fatalf("? should match a single character")
	}
	if p.Match("k") || p.Match("k12") {
		t.Fatalf("? should not match zero or two characters")
	}
}

func TestMatchAgreesWithRegexp(t *testing.T) {
	masks := []string{"type:*:x?", "*:*", "a.b*", "x[y]?", "pre(fix)*", "{a,b}*", "a\nb*"}
	keys := []string{"type:1:x2", "type::x", "a:b", "a.bc", "axbc", "x[y]1", "xy1", "pre(fix)z", "{a,b}", "a", "a\nbz"}
	for _, m := range masks {
		p := MustCompile(m)
		re := regexp.MustCompile(p.Regexp())
		for _, k := range keys {
			if got, want := p.Match(k), re.MatchString(k); got != want {
				t.Fatalf("mask %q key %q: Match=%v regexp=%v", m, k, got, want)
			}
		}
	}
}

func TestPrefixIsLiteral(t *testing.T) {
	p, err := CompileWithPrefix("app*:", "u:?")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Match("app*:u:1") {
		t.Fatalf("expected literal prefix to match")
	}
	if p.Match("appX:u:1") {
		t.Fatalf("'*' inside prefix must be literal")
	}
	if p.Native() != `app\*:u:?` {
		t.Fatalf("Native=%q", p.Native())
	}
	if p.Prefix() != "app*:u:" {
		t.Fatalf("Prefix=%q", p.Prefix())
	}
	if p.String() != "app*:u:?" {
		t.Fatalf("String=%q", p.String())
	}
}

func TestLiteralMask(t *testing.T) {
	if !MustCompile("a:b:c").Literal() {
		t.Fatalf("expected literal")
	}
	if MustCompile("a:*").Literal() {
		t.Fatalf("expected non-literal")
	}
}

func TestEmptyMask(t *testing.T) {
	if _, err := Compile(""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err=%v want ErrEmpty", err)
	}
	var zero Pattern
	if zero.Match("") {
		t.Fatalf("zero pattern should match nothing")
	}
}
