package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/storekit/storefront/internal/domain/catalog"
	"github.com/storekit/storefront/internal/domain/tax"
)

// ItemNotFoundError indicates a requested catalog item does not exist.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("Item %s not found", e.ItemID)
}

// VariantNotFoundError indicates the item exists but has no such variant.
type VariantNotFoundError struct {
	ItemID    string
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("Variant %s not found for item %s", e.VariantID, e.ItemID)
}

// InvalidQuantityError indicates a line has a non-positive quantity.
type InvalidQuantityError struct {
	ItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("Quantity must be greater than 0 for item %s", e.ItemID)
}

// InsufficientStockError indicates a net quantity increase exceeds the
// variant's on-hand stock.
type InsufficientStockError struct {
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for variant %s: requested %d, available %d",
		e.VariantID, e.Requested, e.Available)
}

// DuplicateLineError indicates the same variant appears on more than one
// requested line. Splitting one variant across lines would let each line
// check its stock delta against full on-hand stock.
type DuplicateLineError struct {
	VariantID string
}

func (e *DuplicateLineError) Error() string {
	return fmt.Sprintf("Duplicate order line for variant %s", e.VariantID)
}

// LineRequest is one requested order line.
type LineRequest struct {
	ItemID    string
	VariantID string
	Quantity  int
}

// BaselineLine is the persisted state of an existing order line, keyed by
// variant id. It supplies the frozen unit price and the quantity baseline for
// the stock delta check.
type BaselineLine struct {
	Quantity  int
	UnitPrice decimal.Decimal
	Name      string
}

// PricedLine is a validated, priced order line.
type PricedLine struct {
	ItemID     string
	VariantID  string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Pricing is the engine's output: validated lines and the computed totals.
type Pricing struct {
	Lines         []PricedLine
	Subtotal      decimal.Decimal
	EffectiveRate decimal.Decimal
	TaxTotal      decimal.Decimal
}

// Engine computes line totals, the subtotal, and the tax total, and enforces
// stock sufficiency. It performs no persistence.
type Engine struct {
	catalog catalog.Repository
	taxes   tax.Repository
}

// NewEngine creates a pricing Engine over the catalog and tax-rate lookups.
func NewEngine(cat catalog.Repository, taxes tax.Repository) *Engine {
	return &Engine{catalog: cat, taxes: taxes}
}

// Price validates and prices the requested lines and computes tax for the
// shipping destination. The tax jurisdiction is always the shipping address;
// billing never participates.
//
// baseline carries the persisted quantity and frozen unit price per variant
// for update runs; pass nil when creating. Stock is checked only on a net
// quantity increase: delta = requested - baseline. Holding or decreasing a
// quantity never fails on stock grounds, even when on-hand stock has since
// dropped below the committed quantity. Each variant may appear on at most
// one line.
//
// Price must never be called with an empty line set; the lifecycle service
// rejects that before the engine runs.
func (e *Engine) Price(ctx context.Context, lines []LineRequest, shipTo Address, baseline map[string]BaselineLine) (*Pricing, error) {
	priced := make([]PricedLine, 0, len(lines))
	subtotal := decimal.Zero

	// Items are fetched once per distinct id even when several lines share
	// one item.
	items := make(map[string]*catalog.Item, len(lines))

	// One line per variant. Duplicates would each pass their own delta
	// against full stock and together over-commit it.
	seen := make(map[string]struct{}, len(lines))

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ItemID: line.ItemID}
		}
		if _, dup := seen[line.VariantID]; dup {
			return nil, &DuplicateLineError{VariantID: line.VariantID}
		}
		seen[line.VariantID] = struct{}{}

		item, ok := items[line.ItemID]
		if !ok {
			fetched, err := e.catalog.GetByID(ctx, line.ItemID)
			if err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					return nil, &ItemNotFoundError{ItemID: line.ItemID}
				}
				return nil, errors.Wrapf(err, "get item %s", line.ItemID)
			}
			items[line.ItemID] = fetched
			item = fetched
		}

		variant := item.Variant(line.VariantID)
		if variant == nil {
			return nil, &VariantNotFoundError{ItemID: line.ItemID, VariantID: line.VariantID}
		}

		prior, existing := baseline[line.VariantID]

		delta := line.Quantity
		if existing {
			delta = line.Quantity - prior.Quantity
		}
		if delta > 0 && variant.StockQuantity < delta {
			return nil, &InsufficientStockError{
				VariantID: line.VariantID,
				Requested: delta,
				Available: variant.StockQuantity,
			}
		}

		// Existing lines keep the unit price captured when the order was
		// created; only new lines take the current catalog price.
		unitPrice := variant.Price
		name := lineName(item, variant)
		if existing {
			unitPrice = prior.UnitPrice
			name = prior.Name
		}

		totalPrice := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(totalPrice)

		priced = append(priced, PricedLine{
			ItemID:     line.ItemID,
			VariantID:  line.VariantID,
			Name:       name,
			Quantity:   line.Quantity,
			UnitPrice:  unitPrice,
			TotalPrice: totalPrice,
		})
	}

	rates, err := e.taxes.GetActiveRatesByLocation(ctx, shipTo.Country, shipTo.ProvinceState)
	if err != nil {
		return nil, errors.Wrap(err, "get tax rates")
	}

	// No rates for the location means zero tax, not an error.
	effectiveRate := tax.EffectiveRate(rates)
	taxTotal := subtotal.Mul(effectiveRate).Round(2)

	return &Pricing{
		Lines:         priced,
		Subtotal:      subtotal,
		EffectiveRate: effectiveRate,
		TaxTotal:      taxTotal,
	}, nil
}

func lineName(item *catalog.Item, variant *catalog.Variant) string {
	if variant.Name == "" {
		return item.Name
	}
	return item.Name + " (" + variant.Name + ")"
}
