package shopify

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/florist-bot/internal/domain/product"
)

// StatusError is returned for a non-200 response from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shopify: unexpected status %d: %s", e.Code, e.Body)
}

// GraphQLError carries the messages of a response "errors" array.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "shopify graphql: " + strings.Join(e.Messages, "; ")
}

type productsPage struct {
	nodes       []productNode
	hasNextPage bool
	endCursor   string
}

type productNode struct {
	id          string
	handle      string
	title       string
	description string
	status      string
	tags        []string
	storeURL    string
	imageURL    string
	price       string
	hasPrice    bool
}

// toProduct converts a node, reporting false for products that cannot be
// sold through the bot.
func (n productNode) toProduct(vocab *product.Vocabulary) (product.Product, bool) {
	if !n.hasPrice || n.id == "" {
		return product.Product{}, false
	}
	price, err := decimal.NewFromString(n.price)
	if err != nil {
		return product.Product{}, false
	}
	return product.Product{
		ID:          n.id,
		Handle:      n.handle,
		Title:       n.title,
		Price:       price,
		Tags:        vocab.Tags(n.tags),
		Available:   n.status == "" || n.status == "ACTIVE",
		ImageURL:    n.imageURL,
		Description: n.description,
		StoreURL:    n.storeURL,
	}, true
}

func decodeProductsPage(d *jx.Decoder) (*productsPage, error) {
	page := &productsPage{}
	var gqlErr *GraphQLError
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "data":
			return nullable(d, func(d *jx.Decoder) error {
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "products" {
						return d.Skip()
					}
					return nullable(d, func(d *jx.Decoder) error {
						return decodeProducts(d, page)
					})
				})
			})
		case "errors":
			gqlErr = &GraphQLError{}
			return d.Arr(func(d *jx.Decoder) error {
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "message" {
						return d.Skip()
					}
					msg, err := d.Str()
					if err != nil {
						return err
					}
					gqlErr.Messages = append(gqlErr.Messages, msg)
					return nil
				})
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}
	if gqlErr != nil && len(gqlErr.Messages) > 0 {
		return nil, gqlErr
	}
	return page, nil
}

func decodeProducts(d *jx.Decoder, page *productsPage) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "edges":
			return d.Arr(func(d *jx.Decoder) error {
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "node" {
						return d.Skip()
					}
					n, err := decodeNode(d)
					if err != nil {
						return err
					}
					page.nodes = append(page.nodes, n)
					return nil
				})
			})
		case "pageInfo":
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				var err error
				switch string(key) {
				case "hasNextPage":
					page.hasNextPage, err = d.Bool()
				case "endCursor":
					page.endCursor, err = optStr(d)
				default:
					err = d.Skip()
				}
				return err
			})
		default:
			return d.Skip()
		}
	})
}

func decodeNode(d *jx.Decoder) (productNode, error) {
	var n productNode
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			n.id, err = d.Str()
		case "handle":
			n.handle, err = optStr(d)
		case "title":
			n.title, err = optStr(d)
		case "description":
			n.description, err = optStr(d)
		case "status":
			n.status, err = optStr(d)
		case "onlineStoreUrl":
			n.storeURL, err = optStr(d)
		case "tags":
			n.tags, err = decodeTags(d)
		case "featuredImage":
			err = nullable(d, func(d *jx.Decoder) error {
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "url" {
						return d.Skip()
					}
					var err error
					n.imageURL, err = optStr(d)
					return err
				})
			})
		case "variants":
			err = decodeFirstPrice(d, &n)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	return n, err
}

// decodeTags accepts both the array form and the legacy comma-separated
// string form.
func decodeTags(d *jx.Decoder) ([]string, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		var tags []string
		for _, t := range strings.Split(s, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		return tags, nil
	default:
		var tags []string
		err := d.Arr(func(d *jx.Decoder) error {
			t, err := d.Str()
			if err != nil {
				return err
			}
			tags = append(tags, t)
			return nil
		})
		return tags, err
	}
}

// decodeFirstPrice reads variants.edges[0].node.price. Price is a string in
// the Admin API but older versions returned a number.
func decodeFirstPrice(d *jx.Decoder, n *productNode) error {
	return nullable(d, func(d *jx.Decoder) error {
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "edges" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					if string(key) != "node" || n.hasPrice {
						return d.Skip()
					}
					return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
						if string(key) != "price" {
							return d.Skip()
						}
						switch d.Next() {
						case jx.Number:
							v, err := d.Num()
							if err != nil {
								return err
							}
							n.price, n.hasPrice = string(v), true
						case jx.Null:
							return d.Null()
						case jx.Object:
							// MoneyV2: {"amount": "...", "currencyCode": "..."}
							return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
								if string(key) != "amount" {
									return d.Skip()
								}
								v, err := d.Str()
								if err != nil {
									return err
								}
								n.price, n.hasPrice = v, true
								return nil
							})
						default:
							v, err := d.Str()
							if err != nil {
								return err
							}
							n.price, n.hasPrice = v, true
						}
						return nil
					})
				})
			})
		})
	})
}

func nullable(d *jx.Decoder, fn func(d *jx.Decoder) error) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return fn(d)
}

func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
