package reference

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Canonicalizer maps reference names to their canonical spelling and to the
// case-insensitive key used for comparison.
type Canonicalizer struct {
	aliases map[string]string
}

// NewCanonicalizer builds a canonicalizer over an alias table of
// legacy spelling -> canonical spelling.
func NewCanonicalizer(aliases map[string]string) *Canonicalizer {
	c := &Canonicalizer{aliases: make(map[string]string, len(aliases))}
	for variant, canonical := range aliases {
		c.aliases[fold(clean(variant))] = clean(canonical)
	}
	return c
}

// Canonical returns the display spelling of name after alias substitution.
func (c *Canonicalizer) Canonical(name string) string {
	cleaned := clean(name)
	if canonical, ok := c.aliases[fold(cleaned)]; ok {
		return canonical
	}
	return cleaned
}

// Key returns the comparison key of name: canonical spelling, case folded.
func (c *Canonicalizer) Key(name string) string {
	return fold(c.Canonical(name))
}

// clean applies NFKC (full-width to half-width) and collapses whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

func fold(s string) string {
	return cases.Fold().String(s)
}
