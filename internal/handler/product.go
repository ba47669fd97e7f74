package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/florist-bot/internal/domain/browse"
	"github.com/xenking/florist-bot/internal/domain/product"
	"github.com/xenking/florist-bot/internal/domain/recommend"
)

// ListProducts serves GET /api/products. At most one filter may be given:
// price_min and/or price_max, occasion, or flower.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	crit, filtered, err := parseCriterion(r.URL.Query())
	if err == nil && filtered {
		err = crit.Validate()
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.catalog.Ensure(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	products := c.Products()
	if filtered {
		if products, err = browse.Filter(c, crit); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			h.encodeProduct(e, p)
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

// GetProduct serves GET /api/products/{id}. The id may also be a handle.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.Ensure(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := lookup(c, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var e jx.Encoder
	h.encodeProduct(&e, p)
	writeJSON(w, http.StatusOK, e.Bytes())
}

// SimilarProducts serves GET /api/products/{id}/similar?limit=n.
func (h *Handler) SimilarProducts(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, r, &badRequestError{msg: "limit must be an integer"})
			return
		}
		limit = min(n, h.cfg.MaxLimit)
	}

	c, err := h.catalog.Ensure(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ref, err := lookup(c, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	recs, err := recommend.Recommend(c, ref, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, rec := range recs {
			e.Obj(func(e *jx.Encoder) {
				e.Field("score", func(e *jx.Encoder) { e.Int(rec.Score) })
				e.Field("product", func(e *jx.Encoder) { h.encodeProduct(e, rec.Product) })
			})
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func lookup(c *product.Catalog, key string) (product.Product, error) {
	if p, ok := c.ByID(key); ok {
		return p, nil
	}
	if p, ok := c.ByHandle(key); ok {
		return p, nil
	}
	return product.Product{}, errors.Wrapf(product.ErrNotFound, "%q", key)
}

// parseCriterion maps query parameters to a filter. filtered is false when
// no filter parameter is present.
func parseCriterion(q url.Values) (crit browse.Criterion, filtered bool, err error) {
	minStr, maxStr := q.Get("price_min"), q.Get("price_max")
	occasion, flower := q.Get("occasion"), q.Get("flower")

	given := 0
	for _, set := range []bool{minStr != "" || maxStr != "", occasion != "", flower != ""} {
		if set {
			given++
		}
	}
	switch {
	case given == 0:
		return browse.Criterion{}, false, nil
	case given > 1:
		return browse.Criterion{}, false, &badRequestError{msg: "only one of price, occasion or flower may be given"}
	case occasion != "":
		return browse.Occasion(occasion), true, nil
	case flower != "":
		return browse.FlowerType(flower), true, nil
	}

	lo := decimal.Zero
	if minStr != "" {
		if lo, err = decimal.NewFromString(minStr); err != nil {
			return browse.Criterion{}, false, &badRequestError{msg: "price_min must be a decimal"}
		}
	}
	if maxStr == "" {
		return browse.PriceFrom(lo), true, nil
	}
	hi, err := decimal.NewFromString(maxStr)
	if err != nil {
		return browse.Criterion{}, false, &badRequestError{msg: "price_max must be a decimal"}
	}
	return browse.PriceRange(lo, hi), true, nil
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("handle", func(e *jx.Encoder) { e.Str(p.Handle) })
		e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
		e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.StringFixed(2)) })
		e.Field("currency", func(e *jx.Encoder) { e.Str("AED") })
		e.Field("tags", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, t := range p.Tags.Sorted() {
					e.Str(t)
				}
			})
		})
		e.Field("available", func(e *jx.Encoder) { e.Bool(p.Available) })
		if p.ImageURL != "" {
			e.Field("image", func(e *jx.Encoder) { e.Str(p.ImageURL) })
		}
		if p.Description != "" {
			e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		}
		e.Field("order", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, l := range h.handoff.ForProduct(p) {
					e.Field(string(l.Channel), func(e *jx.Encoder) { e.Str(l.URL) })
				}
			})
		})
	})
}
