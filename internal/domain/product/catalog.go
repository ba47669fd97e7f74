package product

import (
	"fmt"
	"iter"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// tagFilterFPR is the false-positive rate of the per-snapshot tag filter. A
// false positive only costs a linear scan that finds nothing.
const tagFilterFPR = 0.01

// DuplicateIDError is returned by NewCatalog when two products share an ID.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate product id %q", e.ID)
}

// Catalog is an immutable, ordered snapshot of the storefront. Order is the
// source order. A new Catalog is built for every refresh; nothing mutates an
// existing one.
type Catalog struct {
	products  []Product
	byID      map[string]int
	byHandle  map[string]int
	tags      *bloom.BloomFilter
	fetchedAt time.Time
}

// NewCatalog builds a snapshot from products in source order.
func NewCatalog(products []Product, fetchedAt time.Time) (*Catalog, error) {
	c := &Catalog{
		products:  make([]Product, len(products)),
		byID:      make(map[string]int, len(products)),
		byHandle:  make(map[string]int, len(products)),
		fetchedAt: fetchedAt,
	}
	copy(c.products, products)

	tagCount := 0
	for i, p := range c.products {
		if _, ok := c.byID[p.ID]; ok {
			return nil, &DuplicateIDError{ID: p.ID}
		}
		c.byID[p.ID] = i
		if p.Handle != "" {
			if _, ok := c.byHandle[p.Handle]; !ok {
				c.byHandle[p.Handle] = i
			}
		}
		tagCount += p.Tags.Len()
	}

	c.tags = bloom.NewWithEstimates(uint(max(tagCount, 1)), tagFilterFPR)
	for _, p := range c.products {
		for tag := range p.Tags {
			c.tags.AddString(tag)
		}
	}
	return c, nil
}

// Len returns the number of products. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// FetchedAt returns when the snapshot was read from its source.
func (c *Catalog) FetchedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.fetchedAt
}

// All iterates products in catalog order.
func (c *Catalog) All() iter.Seq2[int, Product] {
	return func(yield func(int, Product) bool) {
		if c == nil {
			return
		}
		for i, p := range c.products {
			if !yield(i, p) {
				return
			}
		}
	}
}

// Products returns a copy of the products in catalog order.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// ByID looks a product up by its identifier.
func (c *Catalog) ByID(id string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// ByHandle looks a product up by its storefront handle.
func (c *Catalog) ByHandle(handle string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	i, ok := c.byHandle[handle]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// MayHaveTag reports whether any product could carry tag. False means no
// product does; true may be a false positive.
func (c *Catalog) MayHaveTag(tag string) bool {
	if c == nil {
		return false
	}
	return c.tags.TestString(NormalizeTag(tag))
}
