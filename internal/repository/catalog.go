package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/storekit/storefront/internal/domain/catalog"
)

const (
	getItemByIDSQL = `SELECT id, name, description FROM items WHERE id = $1`

	getVariantsByItemSQL = `SELECT id, name, price, stock_quantity
		FROM item_variants WHERE item_id = $1 ORDER BY id`

	upsertItemSQL = `INSERT INTO items (id, name, description) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description`

	upsertVariantSQL = `INSERT INTO item_variants (id, item_id, name, price, stock_quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
			stock_quantity = EXCLUDED.stock_quantity`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository returns a CatalogRepository over the given DB.
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetByID returns an item with all its variants.
func (r *CatalogRepository) GetByID(ctx context.Context, itemID string) (*catalog.Item, error) {
	var item catalog.Item
	err := r.db.q(ctx).QueryRow(ctx, getItemByIDSQL, itemID).Scan(
		&item.ID, &item.Name, &item.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %q: %w", itemID, err)
	}

	rows, err := r.db.q(ctx).Query(ctx, getVariantsByItemSQL, itemID)
	if err != nil {
		return nil, fmt.Errorf("getting variants for item %q: %w", itemID, err)
	}
	item.Variants, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Variant, error) {
		var v catalog.Variant
		err := row.Scan(&v.ID, &v.Name, &v.Price, &v.StockQuantity)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning variants for item %q: %w", itemID, err)
	}

	return &item, nil
}

// UpsertItem inserts or refreshes an item and its variants. Used by seeding.
func (r *CatalogRepository) UpsertItem(ctx context.Context, item catalog.Item) error {
	q := r.db.q(ctx)

	if _, err := q.Exec(ctx, upsertItemSQL, item.ID, item.Name, item.Description); err != nil {
		return fmt.Errorf("upserting item %q: %w", item.ID, err)
	}
	for _, v := range item.Variants {
		if _, err := q.Exec(ctx, upsertVariantSQL,
			v.ID, item.ID, v.Name, v.Price, v.StockQuantity,
		); err != nil {
			return fmt.Errorf("upserting variant %q: %w", v.ID, err)
		}
	}
	return nil
}
