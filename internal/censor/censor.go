// Package censor masks blacklisted words in outgoing message bodies.
package censor

import (
	"strings"
)

// Censor replaces every occurrence of its words, keeping the first letter
// and masking the rest. Capitalized forms are masked too.
type Censor struct {
	words []string
}

// New creates a censor for the given words.
func New(words ...string) *Censor {
	return &Censor{words: words}
}

// Apply masks all blacklisted words in s.
func (c *Censor) Apply(s string) string {
	for _, w := range c.words {
		if w == "" {
			continue
		}

		s = strings.ReplaceAll(s, w, mask(w))
		s = strings.ReplaceAll(s, capitalize(w), capitalize(mask(w)))
	}

	return s
}

func mask(w string) string {
	r := []rune(w)
	return string(r[0]) + strings.Repeat("*", len(r)-1)
}

func capitalize(w string) string {
	r := []rune(w)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
