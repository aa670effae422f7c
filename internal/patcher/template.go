package patcher

import (
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Render replaces every {{name}} placeholder in tmpl with bindings[name].
// Whitespace around the name is ignored. An unterminated placeholder, an
// invalid name, or a name missing from bindings is a TemplateError.
func Render(tmpl string, bindings map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	rest := tmpl
	offset := 0
	for {
		i := strings.Index(rest, openDelim)
		if i < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:i])

		start := offset + i
		body := rest[i+len(openDelim):]
		j := strings.Index(body, closeDelim)
		if j < 0 {
			return "", &TemplateError{Offset: start, Reason: "unterminated placeholder"}
		}

		name := strings.TrimSpace(body[:j])
		if !validName(name) {
			return "", &TemplateError{Offset: start, Reason: "invalid placeholder name " + quote(name)}
		}
		value, ok := bindings[name]
		if !ok {
			return "", &TemplateError{Offset: start, Reason: "no binding for " + quote(name)}
		}
		b.WriteString(value)

		consumed := i + len(openDelim) + j + len(closeDelim)
		rest = rest[consumed:]
		offset += consumed
	}
}

// validName accepts identifiers made of letters, digits, '_', '-' and '.'.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}

func quote(s string) string {
	return "\"" + s + "\""
}
