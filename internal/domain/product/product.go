package product

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist in the
	// current catalog snapshot.
	ErrNotFound = errors.New("product not found")
	// ErrMissingCatalog is returned by catalog consumers when no snapshot has
	// been loaded yet.
	ErrMissingCatalog = errors.New("catalog not loaded")
	// ErrCatalogUnavailable is matched by every error a catalog source returns
	// when the storefront could not be read.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Product is a single storefront listing as of one fetch cycle.
//
// Products are values: a snapshot hands out copies, and Tags must be treated
// as read-only by every holder.
type Product struct {
	ID          string
	Handle      string
	Title       string
	Price       decimal.Decimal
	Tags        Tags
	Available   bool
	ImageURL    string
	Description string
	StoreURL    string
}

// Key returns the identifier used in links and callbacks: the handle when
// the source provides one, otherwise the ID.
func (p Product) Key() string {
	if p.Handle != "" {
		return p.Handle
	}
	return p.ID
}

// UnavailableError reports a failed catalog fetch. It matches
// ErrCatalogUnavailable with errors.Is and unwraps to the underlying cause.
type UnavailableError struct {
	Source string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s catalog unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCatalogUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrCatalogUnavailable
}

// Unavailable wraps err as an *UnavailableError for the named source.
func Unavailable(source string, err error) error {
	return &UnavailableError{Source: source, Err: err}
}
