// Package gemfile renders Gemfile declarations.
package gemfile

import (
	"strconv"
	"strings"
)

// Gem is a single gem declaration.
type Gem struct {
	Name     string
	Versions []string
	// Require is rendered as "require: false" or "require: true" when set.
	Require *bool
}

// Line renders the declaration without indentation or a line break,
// e.g. gem "devise", "~> 3.5", ">= 3.5.10".
func (g Gem) Line() string {
	parts := []string{"gem " + quote(g.Name)}
	for _, v := range g.Versions {
		parts = append(parts, quote(v))
	}
	if g.Require != nil {
		parts = append(parts, "require: "+strconv.FormatBool(*g.Require))
	}
	return strings.Join(parts, ", ")
}

// Declaration renders g as a top-level Gemfile line.
func Declaration(g Gem) string {
	return g.Line() + "\n"
}

// Group renders a group block for the given group names.
func Group(groups []string, gems []Gem) string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = ":" + strings.TrimPrefix(g, ":")
	}

	var b strings.Builder
	b.WriteString("\ngroup ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(" do\n")
	for _, g := range gems {
		b.WriteString("  ")
		b.WriteString(g.Line())
		b.WriteString("\n")
	}
	b.WriteString("end\n")
	return b.String()
}

func quote(s string) string {
	return "\"" + s + "\""
}
