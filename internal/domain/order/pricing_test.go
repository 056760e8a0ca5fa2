package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storefront/internal/domain/catalog"
	"github.com/storekit/storefront/internal/domain/tax"
)

// --- Mock implementations ---

type mockCatalogRepo struct {
	byID   map[string]*catalog.Item
	getErr error
	calls  int
}

func (m *mockCatalogRepo) GetByID(_ context.Context, id string) (*catalog.Item, error) {
	m.calls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	it, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return it, nil
}

type mockTaxRepo struct {
	rates []tax.Rate
	err   error

	calls        int
	lastCountry  string
	lastProvince string
}

func (m *mockTaxRepo) GetActiveRatesByLocation(_ context.Context, country, provinceState string) ([]tax.Rate, error) {
	m.calls++
	m.lastCountry = country
	m.lastProvince = provinceState
	return m.rates, m.err
}

// --- Helpers ---

func newTestItem(id, name string, variants ...catalog.Variant) catalog.Item {
	return catalog.Item{
		ID:          id,
		Name:        name,
		Description: "test item",
		Variants:    variants,
	}
}

func newCatalogRepo(items ...catalog.Item) *mockCatalogRepo {
	byID := make(map[string]*catalog.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	return &mockCatalogRepo{byID: byID}
}

func ontarioRates() []tax.Rate {
	return []tax.Rate{
		{ID: "gst", Name: "GST", Country: "CA", Rate: decimal.RequireFromString("0.05"), Active: true},
		{ID: "pst-on", Name: "PST (ON)", Country: "CA", ProvinceState: "ON", Rate: decimal.RequireFromString("0.08"), Active: true},
	}
}

func shippingAddress(country, province string) Address {
	return Address{
		FullName:      "Jordan Tester",
		Line1:         "100 Front St",
		City:          "Toronto",
		ProvinceState: province,
		PostalCode:    "M5J 1E3",
		Country:       country,
	}
}

// --- Tests ---

func TestPrice_TotalsWithJurisdictionalTax(t *testing.T) {
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Name: "Green", Price: decimal.RequireFromString("10.00"), StockQuantity: 50},
	)
	taxes := &mockTaxRepo{rates: ontarioRates()}
	engine := NewEngine(newCatalogRepo(item), taxes)

	pricing, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 2}},
		shippingAddress("CA", "ON"), nil)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("20.00").Equal(pricing.Subtotal))
	assert.True(t, decimal.RequireFromString("0.13").Equal(pricing.EffectiveRate))
	assert.True(t, decimal.RequireFromString("2.60").Equal(pricing.TaxTotal))
	require.Len(t, pricing.Lines, 1)
	assert.Equal(t, "Daypack (Green)", pricing.Lines[0].Name)
	assert.True(t, decimal.RequireFromString("20.00").Equal(pricing.Lines[0].TotalPrice))
}

func TestPrice_TaxLookupUsesShippingAddressOnce(t *testing.T) {
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 50},
		catalog.Variant{ID: "v2", Price: decimal.RequireFromString("12.00"), StockQuantity: 50},
	)
	taxes := &mockTaxRepo{rates: ontarioRates()}
	engine := NewEngine(newCatalogRepo(item), taxes)

	_, err := engine.Price(context.Background(),
		[]LineRequest{
			{ItemID: "i1", VariantID: "v1", Quantity: 1},
			{ItemID: "i1", VariantID: "v2", Quantity: 3},
		},
		shippingAddress("CA", "BC"), nil)

	require.NoError(t, err)
	assert.Equal(t, 1, taxes.calls)
	assert.Equal(t, "CA", taxes.lastCountry)
	assert.Equal(t, "BC", taxes.lastProvince)
}

func TestPrice_NoRatesMeansZeroTax(t *testing.T) {
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 10},
	)
	engine := NewEngine(newCatalogRepo(item), &mockTaxRepo{})

	pricing, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 1}},
		shippingAddress("NZ", ""), nil)

	require.NoError(t, err)
	assert.True(t, pricing.TaxTotal.IsZero())
	assert.True(t, pricing.EffectiveRate.IsZero())
}

func TestPrice_ItemFetchedOncePerID(t *testing.T) {
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 50},
		catalog.Variant{ID: "v2", Price: decimal.RequireFromString("12.00"), StockQuantity: 50},
	)
	cat := newCatalogRepo(item)
	engine := NewEngine(cat, &mockTaxRepo{})

	_, err := engine.Price(context.Background(),
		[]LineRequest{
			{ItemID: "i1", VariantID: "v1", Quantity: 1},
			{ItemID: "i1", VariantID: "v2", Quantity: 1},
		},
		shippingAddress("CA", "ON"), nil)

	require.NoError(t, err)
	assert.Equal(t, 1, cat.calls)
}

func TestPrice_InvalidQuantity(t *testing.T) {
	engine := NewEngine(newCatalogRepo(), &mockTaxRepo{})

	_, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 0}},
		shippingAddress("CA", "ON"), nil)

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "i1", iqErr.ItemID)
}

func TestPrice_ItemNotFound(t *testing.T) {
	engine := NewEngine(newCatalogRepo(), &mockTaxRepo{})

	_, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "missing", VariantID: "v1", Quantity: 1}},
		shippingAddress("CA", "ON"), nil)

	var infErr *ItemNotFoundError
	require.ErrorAs(t, err, &infErr)
	assert.Equal(t, "missing", infErr.ItemID)
}

func TestPrice_VariantNotFound(t *testing.T) {
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 50},
	)
	engine := NewEngine(newCatalogRepo(item), &mockTaxRepo{})

	_, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "i1", VariantID: "nope", Quantity: 1}},
		shippingAddress("CA", "ON"), nil)

	var vnfErr *VariantNotFoundError
	require.ErrorAs(t, err, &vnfErr)
	assert.Equal(t, "nope", vnfErr.VariantID)
}

func TestPrice_InsufficientStockOnNewLine(t *testing.T) {
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 3},
	)
	engine := NewEngine(newCatalogRepo(item), &mockTaxRepo{})

	_, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 5}},
		shippingAddress("CA", "ON"), nil)

	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 5, isErr.Requested)
	assert.Equal(t, 3, isErr.Available)
}

func TestPrice_StockCheckedOnDeltaOnly(t *testing.T) {
	// 2 already committed, stock can cover the +3 increase.
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("15.00"), StockQuantity: 3},
	)
	engine := NewEngine(newCatalogRepo(item), &mockTaxRepo{})
	baseline := map[string]BaselineLine{
		"v1": {Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Name: "Daypack (Green)"},
	}

	pricing, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 5}},
		shippingAddress("CA", "ON"), baseline)

	require.NoError(t, err)
	// Full quantity priced at the frozen unit price, not the current catalog price.
	assert.True(t, decimal.RequireFromString("50.00").Equal(pricing.Subtotal))
	assert.Equal(t, "Daypack (Green)", pricing.Lines[0].Name)
}

func TestPrice_DecreaseNeverFailsOnStock(t *testing.T) {
	// Stock dropped to zero after the order was created; lowering the
	// quantity must still succeed.
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 0},
	)
	engine := NewEngine(newCatalogRepo(item), &mockTaxRepo{})
	baseline := map[string]BaselineLine{
		"v1": {Quantity: 5, UnitPrice: decimal.RequireFromString("10.00"), Name: "Daypack"},
	}

	pricing, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 2}},
		shippingAddress("CA", "ON"), baseline)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("20.00").Equal(pricing.Subtotal))
}

func TestPrice_IncreaseBeyondStockDeltaFails(t *testing.T) {
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 2},
	)
	engine := NewEngine(newCatalogRepo(item), &mockTaxRepo{})
	baseline := map[string]BaselineLine{
		"v1": {Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Name: "Daypack"},
	}

	_, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 5}},
		shippingAddress("CA", "ON"), baseline)

	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 3, isErr.Requested)
	assert.Equal(t, 2, isErr.Available)
}

func TestPrice_DuplicateVariantLinesRejected(t *testing.T) {
	// Two lines of 3 against 4 on hand would each pass in isolation while
	// committing 6 units together.
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 4},
	)
	engine := NewEngine(newCatalogRepo(item), &mockTaxRepo{})

	_, err := engine.Price(context.Background(),
		[]LineRequest{
			{ItemID: "i1", VariantID: "v1", Quantity: 3},
			{ItemID: "i1", VariantID: "v1", Quantity: 3},
		},
		shippingAddress("CA", "ON"), nil)

	var dlErr *DuplicateLineError
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, "v1", dlErr.VariantID)
}

func TestPrice_DistinctVariantsOfOneItemAllowed(t *testing.T) {
	item := newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 4},
		catalog.Variant{ID: "v2", Price: decimal.RequireFromString("10.00"), StockQuantity: 4},
	)
	engine := NewEngine(newCatalogRepo(item), &mockTaxRepo{})

	pricing, err := engine.Price(context.Background(),
		[]LineRequest{
			{ItemID: "i1", VariantID: "v1", Quantity: 3},
			{ItemID: "i1", VariantID: "v2", Quantity: 3},
		},
		shippingAddress("CA", "ON"), nil)

	require.NoError(t, err)
	require.Len(t, pricing.Lines, 2)
}

func TestPrice_TaxTotalRoundedToCents(t *testing.T) {
	item := newTestItem("i1", "Socks",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("14.99"), StockQuantity: 10},
	)
	taxes := &mockTaxRepo{rates: []tax.Rate{
		{ID: "qst", Name: "QST", Country: "CA", ProvinceState: "QC", Rate: decimal.RequireFromString("0.09975"), Active: true},
	}}
	engine := NewEngine(newCatalogRepo(item), taxes)

	pricing, err := engine.Price(context.Background(),
		[]LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 1}},
		shippingAddress("CA", "QC"), nil)

	require.NoError(t, err)
	// 14.99 * 0.09975 = 1.49525, rounded half-up to 1.50.
	assert.True(t, decimal.RequireFromString("1.50").Equal(pricing.TaxTotal))
}
