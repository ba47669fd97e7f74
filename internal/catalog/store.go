// Package catalog keeps the current storefront snapshot and refreshes it from
// a Source.
package catalog

import (
	"context"
	"sync/atomic"

	"github.com/xenking/florist-bot/internal/domain/product"
)

// Source fetches a complete catalog snapshot. Failures match
// product.ErrCatalogUnavailable.
type Source interface {
	Fetch(ctx context.Context) (*product.Catalog, error)
}

// Store holds the current snapshot. Readers get either the previous or the
// next catalog, never a mix.
type Store struct {
	current atomic.Pointer[product.Catalog]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Load returns the current snapshot, or nil before the first refresh.
func (s *Store) Load() *product.Catalog {
	return s.current.Load()
}

// Swap publishes c and returns the previous snapshot.
func (s *Store) Swap(c *product.Catalog) *product.Catalog {
	return s.current.Swap(c)
}
