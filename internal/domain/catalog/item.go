// Package catalog exposes the item/variant lookup consumed by the order
// pricing engine. Prices and stock levels always reflect the catalog at the
// moment of the call.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested item does not exist.
var ErrNotFound = errors.New("item not found")

// Item is a sellable catalog entry with one or more purchasable variants.
type Item struct {
	ID          string
	Name        string
	Description string
	Variants    []Variant
}

// Variant is a concrete purchasable form of an item with its own price and
// on-hand stock.
type Variant struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	StockQuantity int
}

// Variant returns the variant with the given id, or nil when the item has no
// such variant.
func (i *Item) Variant(variantID string) *Variant {
	for idx := range i.Variants {
		if i.Variants[idx].ID == variantID {
			return &i.Variants[idx]
		}
	}
	return nil
}

// Repository defines read operations for the catalog.
type Repository interface {
	// GetByID returns an item with its variants. Returns ErrNotFound when
	// the item does not exist.
	GetByID(ctx context.Context, itemID string) (*Item, error)
}
