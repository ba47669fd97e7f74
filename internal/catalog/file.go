package catalog

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/florist-bot/internal/domain/product"
)

var _ Source = (*FileSource)(nil)

// FileSource reads a catalog export: a JSON array of products, optionally
// gzip-compressed when the path ends in ".gz".
type FileSource struct {
	path  string
	vocab *product.Vocabulary
}

// NewFileSource returns a FileSource for path. Tags are canonicalized with
// vocab.
func NewFileSource(path string, vocab *product.Vocabulary) *FileSource {
	return &FileSource{path: path, vocab: vocab}
}

// Fetch reads the whole export into a new snapshot.
func (s *FileSource) Fetch(ctx context.Context) (*product.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	products, err := ReadProductsFile(s.path, s.vocab)
	if err != nil {
		return nil, product.Unavailable("file", err)
	}
	c, err := product.NewCatalog(products, time.Now())
	if err != nil {
		return nil, product.Unavailable("file", err)
	}
	return c, nil
}

// ReadProductsFile opens path and decodes it with DecodeProducts.
func ReadProductsFile(path string, vocab *product.Vocabulary) ([]product.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	products, err := DecodeProducts(r, vocab)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return products, nil
}

// DecodeProducts decodes a JSON array of product objects:
//
//	[{"id":"1","handle":"red-roses","title":"Red Roses","price":"120.00",
//	  "tags":["Rose","Birthday"],"available":true,"image":"https://...",
//	  "description":"...","url":"https://..."}]
//
// Price may be a JSON string or number. Unknown fields are ignored.
func DecodeProducts(r io.Reader, vocab *product.Vocabulary) ([]product.Product, error) {
	d := jx.Decode(r, 4096)

	var products []product.Product
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d, vocab)
		if err != nil {
			return errors.Wrapf(err, "product %d", len(products))
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, err
	}
	return products, nil
}

func decodeProduct(d *jx.Decoder, vocab *product.Vocabulary) (product.Product, error) {
	p := product.Product{Available: true}
	var tags []string
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "handle":
			p.Handle, err = d.Str()
		case "title":
			p.Title, err = d.Str()
		case "price":
			p.Price, err = decodePrice(d)
		case "tags":
			err = d.Arr(func(d *jx.Decoder) error {
				tag, err := d.Str()
				if err != nil {
					return err
				}
				tags = append(tags, tag)
				return nil
			})
		case "available":
			p.Available, err = d.Bool()
		case "image":
			p.ImageURL, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "url":
			p.StoreURL, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, err
	}
	if p.ID == "" {
		return product.Product{}, errors.New("missing id")
	}
	p.Tags = vocab.Tags(tags)
	return p, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	default:
		return decimal.Zero, errors.Errorf("unexpected price type %s", d.Next())
	}
}
