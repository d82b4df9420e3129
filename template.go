package linkterm

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTemplate is the URL scheme applied to validated matches unless
// configured otherwise.
const DefaultTemplate = "cursor://file/{abs_path}:{line}"

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenAbsPath
	tokenLine
)

type templateToken struct {
	kind tokenKind
	lit  string
}

// URLTemplate is a compiled URL scheme template. Templates support exactly
// two placeholders, {abs_path} and {line}; anything else is rejected when the
// template is parsed. When a match carries no line number, each {line}
// placeholder is omitted together with the literal immediately preceding it
// (so the default template degrades from "...:{line}" to "...").
type URLTemplate struct {
	raw    string
	tokens []templateToken
}

// ParseURLTemplate compiles a template string, rejecting unknown placeholders
// and unterminated braces.
func ParseURLTemplate(s string) (*URLTemplate, error) {
	t := &URLTemplate{raw: s}
	rest := s
	for {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			if rest != "" {
				t.tokens = append(t.tokens, templateToken{kind: tokenLiteral, lit: rest})
			}
			break
		}
		if i > 0 {
			t.tokens = append(t.tokens, templateToken{kind: tokenLiteral, lit: rest[:i]})
		}
		j := strings.IndexByte(rest[i:], '}')
		if j < 0 {
			return nil, fmt.Errorf("url template %q: unterminated placeholder", s)
		}
		name := rest[i+1 : i+j]
		switch name {
		case "abs_path":
			t.tokens = append(t.tokens, templateToken{kind: tokenAbsPath})
		case "line":
			t.tokens = append(t.tokens, templateToken{kind: tokenLine})
		default:
			return nil, fmt.Errorf("url template %q: unknown placeholder {%s}", s, name)
		}
		rest = rest[i+j+1:]
	}
	if len(t.tokens) == 0 {
		return nil, fmt.Errorf("url template must not be empty")
	}
	return t, nil
}

// MustURLTemplate is ParseURLTemplate that panics on error, for templates
// known at compile time.
func MustURLTemplate(s string) *URLTemplate {
	t, err := ParseURLTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultURLTemplate returns the compiled default template.
func DefaultURLTemplate() *URLTemplate {
	return MustURLTemplate(DefaultTemplate)
}

// String returns the template source text.
func (t *URLTemplate) String() string {
	return t.raw
}

// URL substitutes absPath and line into the template. A line of 0 means
// absent: {line} placeholders and their preceding literals are dropped.
func (t *URLTemplate) URL(absPath string, line int) string {
	var b strings.Builder
	for i, tok := range t.tokens {
		switch tok.kind {
		case tokenLiteral:
			if line == 0 && i+1 < len(t.tokens) && t.tokens[i+1].kind == tokenLine {
				continue
			}
			b.WriteString(tok.lit)
		case tokenAbsPath:
			b.WriteString(escapePath(absPath))
		case tokenLine:
			if line != 0 {
				b.WriteString(strconv.Itoa(line))
			}
		}
	}
	return b.String()
}

// escapePath percent-encodes every byte outside the unreserved URI set,
// keeping path separators literal. Non-ASCII characters are encoded as their
// UTF-8 octets.
func escapePath(p string) string {
	const hex = "0123456789ABCDEF"

	plain := func(c byte) bool {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return true
		case c == '-' || c == '.' || c == '_' || c == '~' || c == '/':
			return true
		}
		return false
	}

	needed := 0
	for i := 0; i < len(p); i++ {
		if !plain(p[i]) {
			needed++
		}
	}
	if needed == 0 {
		return p
	}

	var b strings.Builder
	b.Grow(len(p) + 2*needed)
	for i := 0; i < len(p); i++ {
		c := p[i]
		if plain(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xf])
	}
	return b.String()
}
