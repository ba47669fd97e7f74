package bot

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/florist-bot/internal/domain/browse"
)

// Category names used in callback data.
const (
	CategoryPrice    = "price"
	CategoryOccasion = "occasion"
	CategoryFlowers  = "flowers"
)

// Option is an entry of a category submenu.
type Option struct {
	Label string
	Value string
}

// Menu is a category submenu.
type Menu struct {
	Title   string
	Options []Option
}

var menus = map[string]Menu{
	CategoryPrice: {
		Title: "💰 Select Price Range",
		Options: []Option{
			{"Under AED50", "under50"},
			{"AED50-150", "50-150"},
			{"AED151-250", "151-250"},
			{"Over AED250", "over250"},
		},
	},
	CategoryOccasion: {
		Title: "🎉 Select Occasion",
		Options: []Option{
			{"Anniversary", "anniversary"},
			{"Valentine", "valentine"},
			{"Romantic", "romantic"},
			{"Get Well Soon", "getwell"},
			{"Wedding", "wedding"},
			{"Happy Birthday", "birthday"},
			{"Father's Day", "fathersday"},
		},
	},
	CategoryFlowers: {
		Title: "🌷 Select Flower Type",
		Options: []Option{
			{"Roses", "roses"},
			{"Lilies", "lilies"},
			{"Tulips", "tulips"},
			{"Orchids", "orchids"},
			{"Sunflowers", "sunflowers"},
			{"Mixed Flowers", "mixed"},
		},
	},
}

// filterLabels name filter values in list headers.
var filterLabels = map[string]string{
	"under50":     "Under AED50",
	"50-150":      "AED50-150",
	"151-250":     "AED151-250",
	"over250":     "Over AED250",
	"anniversary": "Anniversary",
	"valentine":   "Valentine's Day",
	"romantic":    "Romantic",
	"getwell":     "Get Well Soon",
	"wedding":     "Wedding",
	"birthday":    "Birthday",
	"fathersday":  "Father's Day",
	"roses":       "Roses",
	"lilies":      "Lilies",
	"tulips":      "Tulips",
	"orchids":     "Orchids",
	"sunflowers":  "Sunflowers",
	"mixed":       "Mixed Flowers",
}

// FilterLabel returns the display name of a filter value.
func FilterLabel(value string) string {
	if l, ok := filterLabels[value]; ok {
		return l
	}
	return value
}

// priceBuckets are the price menu ranges in AED. A nil upper bound is open.
var priceBuckets = map[string][2]*decimal.Decimal{
	"under50": {ptr(0), ptr(50)},
	"50-150":  {ptr(50), ptr(150)},
	"151-250": {ptr(151), ptr(250)},
	"over250": {ptr(251), nil},
}

func ptr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// UnknownOptionError is returned for a category or value missing from the
// menus.
type UnknownOptionError struct {
	Category string
	Value    string
}

func (e *UnknownOptionError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("unknown category %q", e.Category)
	}
	return fmt.Sprintf("unknown %s option %q", e.Category, e.Value)
}

// CriterionFor maps a submenu selection to a filter criterion.
func CriterionFor(category, value string) (browse.Criterion, error) {
	switch category {
	case CategoryPrice:
		b, ok := priceBuckets[value]
		if !ok {
			return browse.Criterion{}, &UnknownOptionError{Category: category, Value: value}
		}
		if b[1] == nil {
			return browse.PriceFrom(*b[0]), nil
		}
		return browse.PriceRange(*b[0], *b[1]), nil
	case CategoryOccasion:
		if !hasOption(category, value) {
			return browse.Criterion{}, &UnknownOptionError{Category: category, Value: value}
		}
		return browse.Occasion(value), nil
	case CategoryFlowers:
		if !hasOption(category, value) {
			return browse.Criterion{}, &UnknownOptionError{Category: category, Value: value}
		}
		return browse.FlowerType(value), nil
	default:
		return browse.Criterion{}, &UnknownOptionError{Category: category}
	}
}

func hasOption(category, value string) bool {
	for _, o := range menus[category].Options {
		if o.Value == value {
			return true
		}
	}
	return false
}
