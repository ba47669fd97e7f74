// Package recommend suggests similar bouquets by shared tags.
package recommend

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/xenking/florist-bot/internal/domain/product"
)

// DefaultLimit is the number of suggestions shown under a product.
const DefaultLimit = 3

// ErrMissingCatalog is returned when Recommend is called before any snapshot
// has been loaded.
var ErrMissingCatalog = product.ErrMissingCatalog

// InvalidLimitError is returned for a non-positive limit.
type InvalidLimitError struct {
	Limit int
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("invalid recommendation limit %d: must be greater than 0", e.Limit)
}

// Recommendation is a candidate product scored against a reference product.
type Recommendation struct {
	Product product.Product
	// Score is the number of tags shared with the reference product.
	Score int
}

// Recommend returns up to limit products from c sharing at least one tag with
// ref, best overlap first. Equal scores keep catalog order. The reference
// product itself is never included.
func Recommend(c *product.Catalog, ref product.Product, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		return nil, &InvalidLimitError{Limit: limit}
	}
	if c == nil {
		return nil, ErrMissingCatalog
	}

	out := make([]Recommendation, 0)
	if ref.Tags.Len() == 0 {
		return out, nil
	}
	for _, p := range c.All() {
		if p.ID == ref.ID {
			continue
		}
		if score := ref.Tags.Overlap(p.Tags); score > 0 {
			out = append(out, Recommendation{Product: p, Score: score})
		}
	}

	slices.SortStableFunc(out, func(a, b Recommendation) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
