// Package handler serves the read-only catalog API: filtered product lists,
// product lookup and similar-bouquet suggestions.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/florist-bot/internal/domain/order"
	"github.com/xenking/florist-bot/internal/domain/product"
	"github.com/xenking/florist-bot/internal/domain/recommend"
)

// CatalogProvider returns the current catalog snapshot.
type CatalogProvider interface {
	Ensure(ctx context.Context) (*product.Catalog, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// DefaultLimit is used by the similar endpoint when no limit is given.
	DefaultLimit int
	// MaxLimit caps the limit query parameter.
	MaxLimit int
}

// Handler serves the catalog API.
type Handler struct {
	catalog CatalogProvider
	handoff *order.Handoff
	cfg     Config
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config, catalog CatalogProvider, handoff *order.Handoff) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = recommend.DefaultLimit
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = max(cfg.DefaultLimit, 50)
	}
	return &Handler{catalog: catalog, handoff: handoff, cfg: cfg}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/products/{id}/similar", h.SimilarProducts)
}
