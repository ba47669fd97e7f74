package product

import (
	"slices"
	"strings"
)

// Tags is a set of normalized tag labels.
type Tags map[string]struct{}

// NormalizeTag lowercases and trims a tag. Matching everywhere in the
// catalog is exact on the normalized form.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NewTags builds a tag set from raw labels, dropping blanks.
func NewTags(tags ...string) Tags {
	set := make(Tags, len(tags))
	for _, t := range tags {
		if n := NormalizeTag(t); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Has reports whether tag (normalized) is in the set.
func (t Tags) Has(tag string) bool {
	_, ok := t[NormalizeTag(tag)]
	return ok
}

// Len returns the number of tags.
func (t Tags) Len() int { return len(t) }

// Overlap returns the size of the intersection of t and o.
func (t Tags) Overlap(o Tags) int {
	small, large := t, o
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for tag := range small {
		if _, ok := large[tag]; ok {
			n++
		}
	}
	return n
}

// Sorted returns the tags in lexical order.
func (t Tags) Sorted() []string {
	out := make([]string, 0, len(t))
	for tag := range t {
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}
