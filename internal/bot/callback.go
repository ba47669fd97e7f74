package bot

import (
	"crypto/sha1" //nolint:gosec // short lookup key, not a security boundary
	"encoding/hex"

	"github.com/xenking/florist-bot/internal/domain/product"
)

// maxCallbackData is the Telegram limit on callback data, in bytes.
const maxCallbackData = 64

// hashedKeyLen is the length of a hashed product key.
const hashedKeyLen = 8

// productAction returns the action opening p. Keys that would overflow the
// callback data limit are replaced with a short hash.
func productAction(p product.Product) Action {
	key := p.Key()
	if len(prefixProduct)+len(key) > maxCallbackData {
		key = hashKey(key)
	}
	return Action{Kind: ActionProduct, Value: key}
}

func hashKey(key string) string {
	sum := sha1.Sum([]byte(key)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:hashedKeyLen]
}

// resolveProduct finds the product a callback key refers to: by handle, then
// by ID, then by hashed key.
func resolveProduct(c *product.Catalog, key string) (product.Product, bool) {
	if p, ok := c.ByHandle(key); ok {
		return p, true
	}
	if p, ok := c.ByID(key); ok {
		return p, true
	}
	if len(key) != hashedKeyLen {
		return product.Product{}, false
	}
	for _, p := range c.All() {
		if hashKey(p.Key()) == key {
			return p, true
		}
	}
	return product.Product{}, false
}
