package browse

import (
	"github.com/xenking/florist-bot/internal/domain/product"
)

// ErrMissingCatalog is returned when Filter is called before any snapshot
// has been loaded.
var ErrMissingCatalog = product.ErrMissingCatalog

// Filter returns the products in c matching crit, in catalog order. An
// unknown tag yields an empty result and a nil error.
func Filter(c *product.Catalog, crit Criterion) ([]product.Product, error) {
	if err := crit.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrMissingCatalog
	}
	if crit.Kind != KindPrice && (crit.Tag == "" || !c.MayHaveTag(crit.Tag)) {
		return []product.Product{}, nil
	}

	out := make([]product.Product, 0)
	for _, p := range c.All() {
		if crit.matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}
