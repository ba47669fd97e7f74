// Package shopify reads the storefront catalog from the Shopify Admin GraphQL
// API.
package shopify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/florist-bot/internal/catalog"
	"github.com/xenking/florist-bot/internal/domain/product"
)

var _ catalog.Source = (*Client)(nil)

const (
	// pageSize is the Admin API maximum for products(first:).
	pageSize = 250
	// defaultMaxPages bounds a fetch to 5000 products.
	defaultMaxPages = 20
)

// productsQuery lists active products with their first variant price.
const productsQuery = `query Products($first: Int!, $after: String) {
  products(first: $first, after: $after, query: "status:active") {
    edges {
      node {
        id
        handle
        title
        description
        status
        tags
        onlineStoreUrl
        featuredImage { url }
        variants(first: 1) { edges { node { price } } }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// Config holds the Shopify connection settings.
type Config struct {
	// Store is the shop subdomain, e.g. "prosto-flowers" for
	// prosto-flowers.myshopify.com.
	Store string
	// Token is the access token sent as X-Shopify-Access-Token.
	Token      string
	APIVersion string
	Timeout    time.Duration
	// MaxPages bounds the number of pages read per fetch.
	MaxPages int
	// Endpoint overrides the GraphQL URL derived from Store and APIVersion.
	Endpoint string
}

// Domain returns the shop's myshopify.com host.
func (c Config) Domain() string {
	return c.Store + ".myshopify.com"
}

// Client fetches products and converts them into catalog snapshots.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	vocab    *product.Vocabulary
	maxPages int
	lg       *zap.Logger
}

// NewClient creates a Client. Outgoing requests are traced and measured.
func NewClient(
	cfg Config,
	vocab *product.Vocabulary,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Client, error) {
	if cfg.Store == "" && cfg.Endpoint == "" {
		return nil, errors.New("shopify store is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("shopify access token is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2025-07"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", cfg.Domain(), cfg.APIVersion)
	}

	return &Client{
		endpoint: endpoint,
		token:    cfg.Token,
		vocab:    vocab,
		maxPages: cfg.MaxPages,
		lg:       lg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(tp),
				otelhttp.WithMeterProvider(mp),
			),
		},
	}, nil
}

// Fetch reads every active product, following pagination, and returns a new
// snapshot in storefront order. Products without a priced variant are
// skipped.
func (c *Client) Fetch(ctx context.Context) (*product.Catalog, error) {
	var (
		products []product.Product
		cursor   string
		more     = true
	)
	for page := 0; more && page < c.maxPages; page++ {
		resp, err := c.productsPage(ctx, cursor)
		if err != nil {
			return nil, product.Unavailable("shopify", errors.Wrapf(err, "page %d", page))
		}
		for _, n := range resp.nodes {
			if p, ok := n.toProduct(c.vocab); ok {
				products = append(products, p)
			}
		}
		more = resp.hasNextPage && resp.endCursor != ""
		cursor = resp.endCursor
	}
	if more {
		c.lg.Warn("Catalog truncated at page limit, remaining products are not listed",
			zap.Int("pages", c.maxPages),
			zap.Int("products", len(products)),
		)
	}

	snapshot, err := product.NewCatalog(products, time.Now())
	if err != nil {
		return nil, product.Unavailable("shopify", err)
	}
	return snapshot, nil
}

func (c *Client) productsPage(ctx context.Context, cursor string) (*productsPage, error) {
	body := encodeRequest(productsQuery, pageSize, cursor)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, &StatusError{Code: res.StatusCode, Body: string(snippet)}
	}

	page, err := decodeProductsPage(jx.Decode(res.Body, 8192))
	if err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return page, nil
}

// encodeRequest builds {"query": ..., "variables": {"first": n, "after": ...}}.
func encodeRequest(query string, first int, after string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("query", func(e *jx.Encoder) { e.Str(query) })
		e.Field("variables", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("first", func(e *jx.Encoder) { e.Int(first) })
				e.Field("after", func(e *jx.Encoder) {
					if after == "" {
						e.Null()
						return
					}
					e.Str(after)
				})
			})
		})
	})
	return e.Bytes()
}
