// Package browse filters a catalog snapshot by price or by tag.
package browse

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/florist-bot/internal/domain/product"
)

// Kind enumerates the supported filter criteria.
type Kind uint8

const (
	// KindPrice selects products whose price falls in a range.
	KindPrice Kind = iota + 1
	// KindOccasion selects products tagged with an occasion.
	KindOccasion
	// KindFlowerType selects products tagged with a flower type.
	KindFlowerType
)

func (k Kind) String() string {
	switch k {
	case KindPrice:
		return "price"
	case KindOccasion:
		return "occasion"
	case KindFlowerType:
		return "flower_type"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ErrUnknownCriterion is returned for a Criterion with an unsupported Kind.
var ErrUnknownCriterion = errors.New("unknown filter criterion")

// InvalidRangeError is returned when a price range has Min above Max.
type InvalidRangeError struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid price range: min %s is greater than max %s", e.Min, e.Max)
}

// Criterion is a tagged variant over the three ways a customer can browse.
// Min and Max are meaningful for KindPrice, Tag for the tag kinds. Use the
// constructors rather than filling fields by hand.
type Criterion struct {
	Kind Kind
	Min  decimal.Decimal
	// Max is unbounded when not Valid.
	Max decimal.NullDecimal
	Tag string
}

// PriceRange selects products with min <= price <= max.
func PriceRange(min, max decimal.Decimal) Criterion {
	return Criterion{
		Kind: KindPrice,
		Min:  min,
		Max:  decimal.NewNullDecimal(max),
	}
}

// PriceFrom selects products with price >= min.
func PriceFrom(min decimal.Decimal) Criterion {
	return Criterion{Kind: KindPrice, Min: min}
}

// Occasion selects products carrying the occasion tag.
func Occasion(tag string) Criterion {
	return Criterion{Kind: KindOccasion, Tag: product.NormalizeTag(tag)}
}

// FlowerType selects products carrying the flower-type tag.
func FlowerType(tag string) Criterion {
	return Criterion{Kind: KindFlowerType, Tag: product.NormalizeTag(tag)}
}

// Validate reports malformed criteria.
func (c Criterion) Validate() error {
	switch c.Kind {
	case KindPrice:
		if c.Max.Valid && c.Min.GreaterThan(c.Max.Decimal) {
			return &InvalidRangeError{Min: c.Min, Max: c.Max.Decimal}
		}
		return nil
	case KindOccasion, KindFlowerType:
		return nil
	default:
		return errors.Wrapf(ErrUnknownCriterion, "kind %s", c.Kind)
	}
}

func (c Criterion) String() string {
	switch c.Kind {
	case KindPrice:
		if !c.Max.Valid {
			return fmt.Sprintf("price>=%s", c.Min)
		}
		return fmt.Sprintf("price[%s,%s]", c.Min, c.Max.Decimal)
	default:
		return c.Kind.String() + "=" + c.Tag
	}
}

func (c Criterion) matches(p product.Product) bool {
	switch c.Kind {
	case KindPrice:
		if p.Price.LessThan(c.Min) {
			return false
		}
		return !c.Max.Valid || p.Price.LessThanOrEqual(c.Max.Decimal)
	default:
		return p.Tags.Len() > 0 && p.Tags.Has(c.Tag)
	}
}
