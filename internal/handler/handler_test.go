package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/florist-bot/internal/domain/order"
	"github.com/xenking/florist-bot/internal/domain/product"
)

type mockCatalog struct {
	c   *product.Catalog
	err error
}

func (m *mockCatalog) Ensure(context.Context) (*product.Catalog, error) {
	return m.c, m.err
}

func testCatalog(t *testing.T) *product.Catalog {
	t.Helper()
	c, err := product.NewCatalog([]product.Product{
		{ID: "1", Handle: "rose-birthday", Title: "Birthday Roses", Price: decimal.NewFromInt(20),
			Tags: product.NewTags("roses", "birthday"), Available: true, ImageURL: "https://cdn.example/1.jpg"},
		{ID: "2", Handle: "rose-wedding", Title: "Wedding Roses", Price: decimal.NewFromInt(35),
			Tags: product.NewTags("roses", "wedding"), Available: true, StoreURL: "https://shop.example/rose-wedding"},
		{ID: "3", Handle: "tulip-birthday", Title: "Birthday Tulips", Price: decimal.RequireFromString("150.5"),
			Tags: product.NewTags("tulips", "birthday"), Available: true},
		{ID: "4", Handle: "lily-sympathy", Title: "Sympathy Lilies", Price: decimal.NewFromInt(300),
			Tags: product.NewTags("lilies", "sympathy"), Available: false},
	}, time.Now())
	require.NoError(t, err)
	return c
}

func newTestServer(t *testing.T, provider CatalogProvider) *httptest.Server {
	t.Helper()
	h := NewHandler(Config{}, provider, order.NewHandoff(order.HandoffConfig{
		StoreDomain:       "prosto.myshopify.com",
		InstagramUsername: "prosto.flowers",
		WhatsAppNumber:    "+971500000000",
	}))
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (int, []byte) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

// productIDs collects "id" from an array of products, or of
// {"score","product"} objects.
func productIDs(t *testing.T, body []byte) (ids []string, scores []int) {
	t.Helper()
	err := jx.DecodeBytes(body).Arr(func(d *jx.Decoder) error {
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "id":
				id, err := d.Str()
				ids = append(ids, id)
				return err
			case "score":
				n, err := d.Int()
				scores = append(scores, n)
				return err
			case "product":
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "id" {
						return d.Skip()
					}
					id, err := d.Str()
					ids = append(ids, id)
					return err
				})
			default:
				return d.Skip()
			}
		})
	})
	require.NoError(t, err)
	return ids, scores
}

func errorBody(t *testing.T, body []byte) (code int, msg string) {
	t.Helper()
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			code, err = d.Int()
		case "message":
			msg, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	require.NoError(t, err)
	return code, msg
}

func TestListProducts(t *testing.T) {
	srv := newTestServer(t, &mockCatalog{c: testCatalog(t)})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"All", "", []string{"1", "2", "3", "4"}},
		{"PriceRange", "?price_min=20&price_max=150.50", []string{"1", "2", "3"}},
		{"PriceMaxOnly", "?price_max=20", []string{"1"}},
		{"PriceMinOnly", "?price_min=151", []string{"4"}},
		{"Occasion", "?occasion=Birthday", []string{"1", "3"}},
		{"Flower", "?flower=lilies", []string{"4"}},
		{"UnknownTag", "?flower=cactus", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, srv, "/api/products"+tt.query)
			require.Equal(t, http.StatusOK, code)
			ids, _ := productIDs(t, body)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListProducts_BadRequest(t *testing.T) {
	srv := newTestServer(t, &mockCatalog{err: product.Unavailable("test", errors.New("down"))})

	// Parameter errors are reported before the catalog is consulted.
	for _, query := range []string{
		"?price_min=100&price_max=50",
		"?price_min=abc",
		"?price_max=x",
		"?occasion=birthday&flower=roses",
		"?price_min=1&occasion=birthday",
	} {
		code, body := get(t, srv, "/api/products"+query)
		assert.Equal(t, http.StatusBadRequest, code, query)
		bodyCode, msg := errorBody(t, body)
		assert.Equal(t, http.StatusBadRequest, bodyCode)
		assert.NotEmpty(t, msg)
	}
}

func TestListProducts_Unavailable(t *testing.T) {
	for _, err := range []error{
		product.Unavailable("shopify", errors.New("timeout")),
		product.ErrMissingCatalog,
	} {
		srv := newTestServer(t, &mockCatalog{err: err})
		code, body := get(t, srv, "/api/products")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		_, msg := errorBody(t, body)
		assert.Equal(t, "catalog is temporarily unavailable", msg)
	}
}

func TestGetProduct(t *testing.T) {
	srv := newTestServer(t, &mockCatalog{c: testCatalog(t)})

	for _, key := range []string{"3", "tulip-birthday"} {
		code, body := get(t, srv, "/api/products/"+key)
		require.Equal(t, http.StatusOK, code)

		fields := map[string]string{}
		var (
			tags  []string
			links = map[string]string{}
		)
		err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, k []byte) error {
			switch string(k) {
			case "tags":
				return d.Arr(func(d *jx.Decoder) error {
					s, err := d.Str()
					tags = append(tags, s)
					return err
				})
			case "order":
				return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
					s, err := d.Str()
					links[string(k)] = s
					return err
				})
			case "available":
				_, err := d.Bool()
				return err
			default:
				s, err := d.Str()
				fields[string(k)] = s
				return err
			}
		})
		require.NoError(t, err)

		assert.Equal(t, "3", fields["id"])
		assert.Equal(t, "Birthday Tulips", fields["title"])
		assert.Equal(t, "150.50", fields["price"])
		assert.Equal(t, "AED", fields["currency"])
		assert.Equal(t, []string{"birthday", "tulips"}, tags)
		assert.Equal(t, "https://prosto.myshopify.com/products/tulip-birthday", links["store"])
		assert.Equal(t, "https://www.instagram.com/prosto.flowers/", links["instagram"])
		assert.Contains(t, links["whatsapp"], "https://wa.me/971500000000?text=")
		assert.NotContains(t, fields, "image")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	srv := newTestServer(t, &mockCatalog{c: testCatalog(t)})
	code, body := get(t, srv, "/api/products/missing")
	assert.Equal(t, http.StatusNotFound, code)
	_, msg := errorBody(t, body)
	assert.Equal(t, "product not found", msg)
}

func TestSimilarProducts(t *testing.T) {
	srv := newTestServer(t, &mockCatalog{c: testCatalog(t)})

	code, body := get(t, srv, "/api/products/rose-birthday/similar")
	require.Equal(t, http.StatusOK, code)
	ids, scores := productIDs(t, body)
	assert.Equal(t, []string{"2", "3"}, ids)
	assert.Equal(t, []int{1, 1}, scores)

	code, body = get(t, srv, "/api/products/1/similar?limit=1")
	require.Equal(t, http.StatusOK, code)
	ids, _ = productIDs(t, body)
	assert.Equal(t, []string{"2"}, ids)

	code, body = get(t, srv, "/api/products/4/similar")
	require.Equal(t, http.StatusOK, code)
	ids, _ = productIDs(t, body)
	assert.Empty(t, ids)
}

func TestSimilarProducts_Errors(t *testing.T) {
	srv := newTestServer(t, &mockCatalog{c: testCatalog(t)})

	tests := []struct {
		path string
		code int
	}{
		{"/api/products/1/similar?limit=0", http.StatusBadRequest},
		{"/api/products/1/similar?limit=-2", http.StatusBadRequest},
		{"/api/products/1/similar?limit=many", http.StatusBadRequest},
		{"/api/products/nope/similar", http.StatusNotFound},
	}
	for _, tt := range tests {
		code, _ := get(t, srv, tt.path)
		assert.Equal(t, tt.code, code, tt.path)
	}
}
