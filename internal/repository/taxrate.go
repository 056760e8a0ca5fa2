package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/storekit/storefront/internal/domain/tax"
)

// Country-wide rows (province_state IS NULL) apply to every province of the
// country alongside province-specific rows.
const getActiveRatesByLocationSQL = `SELECT id, name, country, COALESCE(province_state, ''), rate, active
	FROM tax_rates
	WHERE active AND country = $1 AND (province_state IS NULL OR province_state = $2)
	ORDER BY name`

const upsertTaxRateSQL = `INSERT INTO tax_rates (id, name, country, province_state, rate, active)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, country = EXCLUDED.country,
		province_state = EXCLUDED.province_state, rate = EXCLUDED.rate,
		active = EXCLUDED.active`

var _ tax.Repository = (*TaxRateRepository)(nil)

// TaxRateRepository implements tax.Repository backed by PostgreSQL.
type TaxRateRepository struct {
	db *DB
}

// NewTaxRateRepository returns a TaxRateRepository over the given DB.
func NewTaxRateRepository(db *DB) *TaxRateRepository {
	return &TaxRateRepository{db: db}
}

// GetActiveRatesByLocation returns every active rate for the location. An
// empty result is valid and means zero tax.
func (r *TaxRateRepository) GetActiveRatesByLocation(ctx context.Context, country, provinceState string) ([]tax.Rate, error) {
	rows, err := r.db.q(ctx).Query(ctx, getActiveRatesByLocationSQL, country, provinceState)
	if err != nil {
		return nil, fmt.Errorf("getting tax rates for %s/%s: %w", country, provinceState, err)
	}
	rates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tax.Rate, error) {
		var t tax.Rate
		err := row.Scan(&t.ID, &t.Name, &t.Country, &t.ProvinceState, &t.Rate, &t.Active)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning tax rates for %s/%s: %w", country, provinceState, err)
	}
	return rates, nil
}

// Upsert inserts or refreshes one rate row. Used by seeding and bulk ingest.
func (r *TaxRateRepository) Upsert(ctx context.Context, t tax.Rate) error {
	_, err := r.db.q(ctx).Exec(ctx, upsertTaxRateSQL,
		t.ID, t.Name, t.Country, t.ProvinceState, t.Rate, t.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting tax rate %q: %w", t.Name, err)
	}
	return nil
}
