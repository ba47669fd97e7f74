package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/florist-bot/internal/catalog"
	"github.com/xenking/florist-bot/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, handle, title, price, tags, available, image_url, description, store_url
		FROM products ORDER BY position, id`

	upsertProductSQL = `INSERT INTO products
		(id, handle, title, price, tags, available, image_url, description, store_url, position, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			handle = EXCLUDED.handle,
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			tags = EXCLUDED.tags,
			available = EXCLUDED.available,
			image_url = EXCLUDED.image_url,
			description = EXCLUDED.description,
			store_url = EXCLUDED.store_url,
			position = EXCLUDED.position,
			updated_at = now()`

	deleteMissingSQL = `DELETE FROM products WHERE id <> ALL($1)`
)

var _ catalog.Source = (*ProductSource)(nil)

// ProductSource reads catalog snapshots from the products mirror table.
type ProductSource struct {
	pool  *pgxpool.Pool
	vocab *product.Vocabulary
}

// NewProductSource returns a ProductSource that uses the given pool. Stored
// tags are canonicalized with vocab on read.
func NewProductSource(pool *pgxpool.Pool, vocab *product.Vocabulary) *ProductSource {
	return &ProductSource{pool: pool, vocab: vocab}
}

// Fetch loads every mirrored product in storefront position order.
func (s *ProductSource) Fetch(ctx context.Context) (*product.Catalog, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, product.Unavailable("postgres", err)
	}
	c, err := product.NewCatalog(products, time.Now())
	if err != nil {
		return nil, product.Unavailable("postgres", err)
	}
	return c, nil
}

// List returns all mirrored products ordered by storefront position.
func (s *ProductSource) List(ctx context.Context) ([]product.Product, error) {
	rows, err := s.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, s.scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	return products, nil
}

// Replace makes the mirror hold exactly products, in a single transaction.
// Existing rows are updated, rows missing from products are deleted, and the
// slice index becomes the stored position.
func (s *ProductSource) Replace(ctx context.Context, products []product.Product) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		ids := make([]string, len(products))
		batch := &pgx.Batch{}
		for i, p := range products {
			ids[i] = p.ID
			batch.Queue(upsertProductSQL,
				p.ID, p.Handle, p.Title, p.Price, p.Tags.Sorted(), p.Available,
				p.ImageURL, p.Description, p.StoreURL, i,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for _, p := range products {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return errors.Wrapf(err, "upsert product %q", p.ID)
			}
		}
		if err := br.Close(); err != nil {
			return errors.Wrap(err, "upsert products")
		}

		tag, err := tx.Exec(ctx, deleteMissingSQL, ids)
		if err != nil {
			return errors.Wrap(err, "delete removed products")
		}
		zctx.From(ctx).Debug("Products replaced",
			zap.Int("upserted", len(products)),
			zap.Int64("deleted", tag.RowsAffected()),
		)
		return nil
	})
}

func (s *ProductSource) scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
		tags  []string
	)
	err := row.Scan(
		&p.ID, &p.Handle, &p.Title, &price, &tags, &p.Available,
		&p.ImageURL, &p.Description, &p.StoreURL,
	)
	p.Price = price
	p.Tags = s.vocab.Tags(tags)
	return p, err
}
