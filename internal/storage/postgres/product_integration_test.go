//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/florist-bot/internal/domain/product"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "florist",
				"POSTGRES_PASSWORD": "florist",
				"POSTGRES_DB":       "florist",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://florist:florist@%s:%s/florist?sslmode=disable", host, port.Port())
}

func TestProductSource(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Schema is idempotent.
	require.NoError(t, RunMigrations(ctx, pool))

	src := NewProductSource(pool, product.DefaultVocabulary())

	empty, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	products := []product.Product{
		{ID: "b", Handle: "tulips", Title: "Tulips", Price: decimal.RequireFromString("45.50"),
			Tags: product.NewTags("tulips", "birthday"), Available: true},
		{ID: "a", Handle: "roses", Title: "Roses", Price: decimal.NewFromInt(120),
			Tags: product.NewTags("roses"), Available: true, StoreURL: "https://shop.example/roses"},
	}
	require.NoError(t, src.Replace(ctx, products))

	c, err := src.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	got := c.Products()
	assert.Equal(t, "b", got[0].ID, "position order, not id order")
	assert.True(t, decimal.RequireFromString("45.5").Equal(got[0].Price))
	assert.Equal(t, []string{"birthday", "tulips"}, got[0].Tags.Sorted())
	assert.Equal(t, "https://shop.example/roses", got[1].StoreURL)

	products[0].Price = decimal.NewFromInt(50)
	products[0].Tags = product.NewTags("Tulip")
	require.NoError(t, src.Replace(ctx, products))

	c, err = src.Fetch(ctx)
	require.NoError(t, err)
	p, ok := c.ByID("b")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(50).Equal(p.Price))
	assert.Equal(t, []string{"tulips"}, p.Tags.Sorted())
}

func TestProductSource_ReplaceDropsRemoved(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))

	src := NewProductSource(pool, product.DefaultVocabulary())
	bouquet := func(id string) product.Product {
		return product.Product{ID: id, Handle: "bouquet-" + id, Title: "Bouquet " + id,
			Price: decimal.NewFromInt(10), Tags: product.NewTags("roses"), Available: true}
	}
	ids := func(c *product.Catalog) []string {
		var out []string
		for _, p := range c.All() {
			out = append(out, p.ID)
		}
		return out
	}

	require.NoError(t, src.Replace(ctx, []product.Product{bouquet("1"), bouquet("2"), bouquet("3")}))
	c, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(c))

	require.NoError(t, src.Replace(ctx, []product.Product{bouquet("3"), bouquet("1")}))
	c, err = src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1"}, ids(c))
	_, ok := c.ByID("2")
	assert.False(t, ok)

	require.NoError(t, src.Replace(ctx, nil))
	c, err = src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestProductSource_Unavailable(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// No migrations: the table does not exist.
	_, err = NewProductSource(pool, nil).Fetch(ctx)
	require.ErrorIs(t, err, product.ErrCatalogUnavailable)
}
