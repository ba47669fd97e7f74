package product

import "strings"

// Vocabulary maps the free-form tags merchants type into the canonical tags
// the menus filter on. "Rose", "roses" and "rose" all become "roses".
type Vocabulary struct {
	aliases map[string]string
}

// NewVocabulary builds a vocabulary from canonical tag to aliases. The
// canonical tag is always an alias of itself.
func NewVocabulary(mapping map[string][]string) *Vocabulary {
	v := &Vocabulary{aliases: make(map[string]string)}
	for canonical, aliases := range mapping {
		canonical = NormalizeTag(canonical)
		v.aliases[aliasKey(canonical)] = canonical
		for _, a := range aliases {
			v.aliases[aliasKey(a)] = canonical
		}
	}
	return v
}

// DefaultVocabulary returns the occasion and flower-type aliases used by the
// shop.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(map[string][]string{
		"anniversary": {"anniversaries"},
		"valentine":   {"valentines", "valentine's day"},
		"romantic":    {"romance", "love"},
		"getwell":     {"get well", "recovery", "feel better"},
		"wedding":     {"bridal", "bridesmaid"},
		"birthday":    {"bday", "birthdays"},
		"fathersday":  {"father's day", "dad"},
		"roses":       {"rose"},
		"lilies":      {"lily"},
		"tulips":      {"tulip"},
		"orchids":     {"orchid"},
		"sunflowers":  {"sunflower"},
		"mixed":       {"assorted", "variety"},
	})
}

// Canonical returns the canonical form of tag, or the normalized tag itself
// when the vocabulary does not know it.
func (v *Vocabulary) Canonical(tag string) string {
	if v != nil {
		if c, ok := v.aliases[aliasKey(tag)]; ok {
			return c
		}
	}
	return NormalizeTag(tag)
}

// Tags canonicalizes raw labels into a tag set.
func (v *Vocabulary) Tags(raw []string) Tags {
	set := make(Tags, len(raw))
	for _, t := range raw {
		if c := v.Canonical(t); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// aliasKey folds spacing and punctuation so "Get-Well" matches "get well".
func aliasKey(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "'", "").Replace(NormalizeTag(s))
}
