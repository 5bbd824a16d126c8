package keyfmt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is returned when a placeholder names a field the
// metadata does not carry.
var ErrMissingField = errors.New("missing field")

// ErrBadVerb is returned when a placeholder's verb cannot format the value,
// such as %d applied to 7.5.
var ErrBadVerb = errors.New("verb does not fit value")

// Formatter derives a key from item metadata.
type Formatter func(meta map[string]any) (string, error)

// Template is a compiled key template.
type Template struct {
	src   string
	parts []part
}

type part struct {
	literal string
	path    []string // nil for literal parts
	verb    string
}

// Compile parses a template. The returned Template is immutable and safe for
// concurrent use.
func Compile(src string) (*Template, error) {
	t := &Template{src: src}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '}':
			return nil, fmt.Errorf("compile %q: unmatched '}' at offset %d", src, i)
		case c == '{':
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("compile %q: unterminated placeholder at offset %d", src, i)
			}
			p, err := parsePlaceholder(src[i+1 : i+1+end])
			if err != nil {
				return nil, fmt.Errorf("compile %q: %w", src, err)
			}
			flush()
			t.parts = append(t.parts, p)
			i += end + 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return t, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Template {
	t, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return t
}

func parsePlaceholder(body string) (part, error) {
	name, verb, hasVerb := strings.Cut(body, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return part{}, errors.New("empty placeholder")
	}
	path := strings.Split(name, ".")
	for _, seg := range path {
		if seg == "" {
			return part{}, fmt.Errorf("invalid field path %q", name)
		}
	}
	if hasVerb {
		if verb == "" {
			return part{}, fmt.Errorf("empty format verb for %q", name)
		}
		if !strings.HasPrefix(verb, "%") {
			verb = "%" + verb
		}
	}
	return part{path: path, verb: verb}, nil
}

// Format renders the template against meta.
func (t *Template) Format(meta map[string]any) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.path == nil {
			b.WriteString(p.literal)
			continue
		}
		v, ok := lookup(meta, p.path)
		if !ok {
			return "", fmt.Errorf("format %q: %w: %s", t.src, ErrMissingField, strings.Join(p.path, "."))
		}
		s, err := render(v, p.verb)
		if err != nil {
			return "", fmt.Errorf("format %q: field %s: %w", t.src, strings.Join(p.path, "."), err)
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// Formatter returns t.Format as a Formatter.
func (t *Template) Formatter() Formatter {
	return t.Format
}

// HasFields reports whether the template contains any placeholder.
func (t *Template) HasFields() bool {
	for _, p := range t.parts {
		if p.path != nil {
			return true
		}
	}
	return false
}

func (t *Template) String() string { return t.src }

// Expand compiles src and formats it against meta in one step.
func Expand(src string, meta map[string]any) (string, error) {
	t, err := Compile(src)
	if err != nil {
		return "", err
	}
	return t.Format(meta)
}

func lookup(meta map[string]any, path []string) (any, bool) {
	var cur any = meta
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
