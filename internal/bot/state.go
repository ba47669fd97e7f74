// Package bot implements the conversation flow of the florist bot: menus,
// filtered product lists, product details with recommendations, and the FAQ.
//
// The package is transport-neutral. It turns commands and callback data into
// Responses that an adapter renders on a concrete chat platform.
package bot

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// State is a node of the conversation state machine. The current state is
// the screen the user is looking at.
type State uint8

const (
	// StateBrowsingMenu is the main menu or a category submenu.
	StateBrowsingMenu State = iota + 1
	// StateFilterSelected is a list of products matching a filter.
	StateFilterSelected
	// StateProductDetail is a single product with order links.
	StateProductDetail
	// StateFAQ is the FAQ topic list or one answer.
	StateFAQ
)

func (s State) String() string {
	switch s {
	case StateBrowsingMenu:
		return "browsing_menu"
	case StateFilterSelected:
		return "filter_selected"
	case StateProductDetail:
		return "product_detail"
	case StateFAQ:
		return "faq"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ActionKind enumerates what a tap on an inline button asks for.
type ActionKind uint8

const (
	// ActionMainMenu returns to the main menu.
	ActionMainMenu ActionKind = iota + 1
	// ActionCategory opens a category submenu.
	ActionCategory
	// ActionFilter applies a filter from a category submenu.
	ActionFilter
	// ActionShowAll lists every available product.
	ActionShowAll
	// ActionProductList re-sends the product list as a new message.
	ActionProductList
	// ActionProduct opens a product detail.
	ActionProduct
	// ActionFAQMain opens the FAQ topic list.
	ActionFAQMain
	// ActionFAQTopic shows one FAQ answer.
	ActionFAQTopic
)

// Target returns the state an action leads to.
func (k ActionKind) Target() State {
	switch k {
	case ActionFilter, ActionShowAll, ActionProductList:
		return StateFilterSelected
	case ActionProduct:
		return StateProductDetail
	case ActionFAQMain, ActionFAQTopic:
		return StateFAQ
	default:
		return StateBrowsingMenu
	}
}

// offers lists the actions each state's screens may present.
var offers = map[State][]ActionKind{
	StateBrowsingMenu:   {ActionCategory, ActionFilter, ActionShowAll, ActionFAQMain, ActionMainMenu},
	StateFilterSelected: {ActionProduct, ActionMainMenu, ActionProductList},
	StateProductDetail:  {ActionProduct, ActionProductList},
	StateFAQ:            {ActionFAQTopic, ActionFAQMain, ActionMainMenu},
}

// Offers reports whether a screen in state s may present action k.
func (s State) Offers(k ActionKind) bool {
	for _, o := range offers[s] {
		if o == k {
			return true
		}
	}
	return false
}

// Callback data literals and prefixes.
const (
	dataMainMenu    = "back_to_main"
	dataProductList = "back_to_menu"
	dataShowAll     = "show_all"
	dataFAQMain     = "faq_main"

	prefixCategory = "category_"
	prefixFilter   = "filter_"
	prefixProduct  = "product_"
	prefixFAQ      = "faq_"
)

// ErrUnknownAction is returned for callback data the bot never produces.
var ErrUnknownAction = errors.New("unknown callback action")

// Action is parsed callback data.
type Action struct {
	Kind ActionKind
	// Category is set for ActionCategory and ActionFilter.
	Category string
	// Value is the filter value, product key or FAQ topic.
	Value string
}

// ParseAction decodes callback data produced by Action.Data.
func ParseAction(data string) (Action, error) {
	switch data {
	case dataMainMenu:
		return Action{Kind: ActionMainMenu}, nil
	case dataProductList:
		return Action{Kind: ActionProductList}, nil
	case dataShowAll:
		return Action{Kind: ActionShowAll}, nil
	case dataFAQMain:
		return Action{Kind: ActionFAQMain}, nil
	}

	switch {
	case strings.HasPrefix(data, prefixCategory):
		if c := strings.TrimPrefix(data, prefixCategory); c != "" {
			return Action{Kind: ActionCategory, Category: c}, nil
		}
	case strings.HasPrefix(data, prefixFilter):
		category, value, ok := strings.Cut(strings.TrimPrefix(data, prefixFilter), "_")
		if ok && category != "" && value != "" {
			return Action{Kind: ActionFilter, Category: category, Value: value}, nil
		}
	case strings.HasPrefix(data, prefixProduct):
		if key := strings.TrimPrefix(data, prefixProduct); key != "" {
			return Action{Kind: ActionProduct, Value: key}, nil
		}
	case strings.HasPrefix(data, prefixFAQ):
		if topic := strings.TrimPrefix(data, prefixFAQ); topic != "" {
			return Action{Kind: ActionFAQTopic, Value: topic}, nil
		}
	}
	return Action{}, errors.Wrapf(ErrUnknownAction, "%q", data)
}

// Data encodes the action as callback data.
func (a Action) Data() string {
	switch a.Kind {
	case ActionMainMenu:
		return dataMainMenu
	case ActionProductList:
		return dataProductList
	case ActionShowAll:
		return dataShowAll
	case ActionFAQMain:
		return dataFAQMain
	case ActionCategory:
		return prefixCategory + a.Category
	case ActionFilter:
		return prefixFilter + a.Category + "_" + a.Value
	case ActionProduct:
		return prefixProduct + a.Value
	case ActionFAQTopic:
		return prefixFAQ + a.Value
	default:
		return ""
	}
}
