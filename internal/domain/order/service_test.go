package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storefront/internal/domain/catalog"
	"github.com/storekit/storefront/internal/domain/outcome"
	"github.com/storekit/storefront/internal/domain/user"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	byID map[string]*Order

	added   *Order
	updated *Order
	deleted bool

	findErr   error
	addErr    error
	updateErr error
	deleteErr error

	calls int
}

func (m *mockOrderRepo) Add(_ context.Context, o *Order) error {
	m.calls++
	if m.addErr != nil {
		return m.addErr
	}
	o.OrderNumber = 1001
	m.added = o
	return nil
}

func (m *mockOrderRepo) FindByUserAndID(_ context.Context, userID, orderID string) (*Order, error) {
	m.calls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	o, ok := m.byID[orderID]
	if !ok || o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *Order) error {
	m.calls++
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = o
	return nil
}

func (m *mockOrderRepo) Delete(_ context.Context, _, _ string) error {
	m.calls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = true
	return nil
}

type mockUserRepo struct {
	exists bool
	err    error
	calls  int
}

func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*user.User, error) {
	return nil, user.ErrNotFound
}

func (m *mockUserRepo) ExistsByID(_ context.Context, _ string) (bool, error) {
	m.calls++
	return m.exists, m.err
}

func (m *mockUserRepo) Update(_ context.Context, _ *user.User) error {
	return nil
}

// passthroughTx runs fn directly and counts invocations.
type passthroughTx struct {
	calls int
}

func (t *passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

// --- Helpers ---

type serviceFixture struct {
	svc    *Service
	orders *mockOrderRepo
	users  *mockUserRepo
	cat    *mockCatalogRepo
	taxes  *mockTaxRepo
	tx     *passthroughTx
}

func newServiceFixture(items ...catalog.Item) *serviceFixture {
	f := &serviceFixture{
		orders: &mockOrderRepo{byID: map[string]*Order{}},
		users:  &mockUserRepo{exists: true},
		cat:    newCatalogRepo(items...),
		taxes:  &mockTaxRepo{rates: ontarioRates()},
		tx:     &passthroughTx{},
	}
	f.svc = NewService(f.orders, f.users, NewEngine(f.cat, f.taxes), f.tx, nil, nil)
	return f
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		Items:           []LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 2}},
		ShippingAddress: AddressInput(shippingAddress("CA", "ON")),
		BillingAddress:  AddressInput(shippingAddress("CA", "BC")),
		Payment:         PaymentInput{PaymentMethodID: "pm-1", Provider: "stripe"},
		ShippingTotal:   decimal.RequireFromString("10.00"),
	}
}

func daypackItem() catalog.Item {
	return newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Name: "Green", Price: decimal.RequireFromString("10.00"), StockQuantity: 50},
	)
}

// --- Create ---

func TestCreate_EmptyItemsRejectedBeforeAnyRepositoryCall(t *testing.T) {
	f := newServiceFixture()

	req := validCreateRequest()
	req.Items = nil
	out := f.svc.Create(context.Background(), "u1", req)

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeValidation, out.Code)
	assert.Equal(t, "At least one order item is required", out.Message)
	assert.Zero(t, f.users.calls)
	assert.Zero(t, f.cat.calls)
	assert.Zero(t, f.orders.calls)
}

func TestCreate_ValidationMessages(t *testing.T) {
	f := newServiceFixture(daypackItem())

	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		message string
	}{
		{"negative shipping", func(r *CreateRequest) { r.ShippingTotal = decimal.RequireFromString("-1") }, "Shipping total cannot be negative"},
		{"missing payment method", func(r *CreateRequest) { r.Payment.PaymentMethodID = "" }, "Payment method is required"},
		{"missing provider", func(r *CreateRequest) { r.Payment.Provider = "" }, "Payment provider is required"},
		{"missing shipping country", func(r *CreateRequest) { r.ShippingAddress.Country = "" }, "Shipping address country is required"},
		{"missing billing city", func(r *CreateRequest) { r.BillingAddress.City = "" }, "Billing address city is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(&req)

			out := f.svc.Create(context.Background(), "u1", req)
			require.False(t, out.Success)
			assert.Equal(t, outcome.CodeValidation, out.Code)
			assert.Equal(t, tc.message, out.Message)
		})
	}
}

func TestCreate_UserNotFound(t *testing.T) {
	f := newServiceFixture(daypackItem())
	f.users.exists = false

	out := f.svc.Create(context.Background(), "ghost", validCreateRequest())

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeNotFound, out.Code)
	assert.Equal(t, "User not found", out.Message)
	assert.Zero(t, f.orders.calls)
}

func TestCreate_TotalsAndPersistence(t *testing.T) {
	f := newServiceFixture(daypackItem())

	out := f.svc.Create(context.Background(), "u1", validCreateRequest())

	require.True(t, out.Success)
	o := out.Value
	assert.Equal(t, "Pending", o.Status)
	assert.Equal(t, int64(1001), o.OrderNumber)
	assert.True(t, decimal.RequireFromString("20.00").Equal(o.Subtotal))
	assert.True(t, decimal.RequireFromString("2.60").Equal(o.TaxTotal))
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.ShippingTotal))
	assert.True(t, decimal.RequireFromString("32.60").Equal(o.GrandTotal))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Daypack (Green)", o.Items[0].Name)

	// Tax jurisdiction comes from the shipping address, never billing.
	assert.Equal(t, 1, f.taxes.calls)
	assert.Equal(t, "ON", f.taxes.lastProvince)

	require.NotNil(t, f.orders.added)
	assert.Equal(t, 1, f.tx.calls)
	assert.NotEmpty(t, f.orders.added.Payment.ID)
	// Provider-scoped payment method ids pass through untouched; they are
	// opaque strings, not local uuids.
	assert.Equal(t, "pm-1", f.orders.added.Payment.PaymentMethodID)
}

func TestCreate_InsufficientStock(t *testing.T) {
	f := newServiceFixture(newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 1},
	))

	out := f.svc.Create(context.Background(), "u1", validCreateRequest())

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeValidation, out.Code)
	assert.Equal(t, "Insufficient stock for variant v1: requested 2, available 1", out.Message)
	assert.Nil(t, f.orders.added)
}

func TestCreate_DuplicateVariantLinesRejected(t *testing.T) {
	f := newServiceFixture(newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Price: decimal.RequireFromString("10.00"), StockQuantity: 4},
	))

	req := validCreateRequest()
	req.Items = []LineRequest{
		{ItemID: "i1", VariantID: "v1", Quantity: 3},
		{ItemID: "i1", VariantID: "v1", Quantity: 3},
	}
	out := f.svc.Create(context.Background(), "u1", req)

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeValidation, out.Code)
	assert.Equal(t, "Duplicate order line for variant v1", out.Message)
	assert.Nil(t, f.orders.added)
}

func TestCreate_UnknownItemIs404(t *testing.T) {
	f := newServiceFixture()

	out := f.svc.Create(context.Background(), "u1", validCreateRequest())

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeNotFound, out.Code)
	assert.Equal(t, "Item i1 not found", out.Message)
}

func TestCreate_PersistErrorIsInternal(t *testing.T) {
	f := newServiceFixture(daypackItem())
	f.orders.addErr = errors.New("db write failed")

	out := f.svc.Create(context.Background(), "u1", validCreateRequest())

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeInternal, out.Code)
}

// --- Get ---

func TestGet_OwnershipMismatchIsNotFound(t *testing.T) {
	f := newServiceFixture()
	f.orders.byID["o1"] = &Order{ID: "o1", UserID: "owner", Status: StatusPending}

	out := f.svc.Get(context.Background(), "intruder", "o1")

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeNotFound, out.Code)
	assert.Equal(t, "Order not found", out.Message)
}

func TestGet_ReturnsProjection(t *testing.T) {
	f := newServiceFixture()
	f.orders.byID["o1"] = &Order{
		ID: "o1", UserID: "u1", OrderNumber: 1042, Status: StatusShipped,
		GrandTotal: decimal.RequireFromString("99.00"),
	}

	out := f.svc.Get(context.Background(), "u1", "o1")

	require.True(t, out.Success)
	assert.Equal(t, int64(1042), out.Value.OrderNumber)
	assert.Equal(t, "Shipped", out.Value.Status)
}

// --- Update ---

func existingPendingOrder() *Order {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Order{
		ID:            "o1",
		UserID:        "u1",
		OrderNumber:   1001,
		OrderDate:     now,
		Status:        StatusPending,
		Subtotal:      decimal.RequireFromString("20.00"),
		TaxTotal:      decimal.RequireFromString("2.60"),
		ShippingTotal: decimal.RequireFromString("10.00"),
		GrandTotal:    decimal.RequireFromString("32.60"),
		Items: []Item{{
			ID: "line-1", OrderID: "o1", ItemID: "i1", VariantID: "v1",
			Name: "Daypack (Green)", Quantity: 2,
			UnitPrice:  decimal.RequireFromString("10.00"),
			TotalPrice: decimal.RequireFromString("20.00"),
		}},
		ShippingAddress: shippingAddress("CA", "ON"),
		BillingAddress:  shippingAddress("CA", "BC"),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestUpdate_NonPendingOrderRejected(t *testing.T) {
	f := newServiceFixture(daypackItem())
	o := existingPendingOrder()
	o.Status = StatusPaid
	f.orders.byID["o1"] = o

	out := f.svc.Update(context.Background(), "u1", UpdateRequest{
		OrderID: "o1",
		Items:   []LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 1}},
	})

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeValidation, out.Code)
	assert.Equal(t, "Order can no longer be modified", out.Message)
	assert.Nil(t, f.orders.updated)
}

func TestUpdate_RecomputesTotalsWithFrozenPrices(t *testing.T) {
	// Catalog price has risen to 15.00 since creation; the stored line must
	// keep pricing at 10.00.
	f := newServiceFixture(newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Name: "Green", Price: decimal.RequireFromString("15.00"), StockQuantity: 2},
	))
	f.orders.byID["o1"] = existingPendingOrder()

	out := f.svc.Update(context.Background(), "u1", UpdateRequest{
		OrderID: "o1",
		Items:   []LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 4}},
	})

	require.True(t, out.Success)
	assert.True(t, decimal.RequireFromString("40.00").Equal(out.Value.Subtotal))
	assert.True(t, decimal.RequireFromString("5.20").Equal(out.Value.TaxTotal))
	// Shipping total was not supplied, so the stored value stays.
	assert.True(t, decimal.RequireFromString("10.00").Equal(out.Value.ShippingTotal))
	assert.True(t, decimal.RequireFromString("55.20").Equal(out.Value.GrandTotal))
	require.NotNil(t, f.orders.updated)
	assert.Equal(t, 1, f.tx.calls)
}

func TestUpdate_TaxUsesStoredShippingAddress(t *testing.T) {
	f := newServiceFixture(daypackItem())
	f.orders.byID["o1"] = existingPendingOrder()

	out := f.svc.Update(context.Background(), "u1", UpdateRequest{
		OrderID: "o1",
		Items:   []LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 1}},
	})

	require.True(t, out.Success)
	assert.Equal(t, 1, f.taxes.calls)
	assert.Equal(t, "CA", f.taxes.lastCountry)
	assert.Equal(t, "ON", f.taxes.lastProvince)
}

func TestUpdate_StockDeltaAgainstPersistedQuantity(t *testing.T) {
	// Only 1 left in stock, but going 2 -> 3 needs exactly 1.
	f := newServiceFixture(newTestItem("i1", "Daypack",
		catalog.Variant{ID: "v1", Name: "Green", Price: decimal.RequireFromString("10.00"), StockQuantity: 1},
	))
	f.orders.byID["o1"] = existingPendingOrder()

	out := f.svc.Update(context.Background(), "u1", UpdateRequest{
		OrderID: "o1",
		Items:   []LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 3}},
	})

	require.True(t, out.Success)
	assert.True(t, decimal.RequireFromString("30.00").Equal(out.Value.Subtotal))
}

func TestUpdate_ShippingAndNotesOverrides(t *testing.T) {
	f := newServiceFixture(daypackItem())
	f.orders.byID["o1"] = existingPendingOrder()

	shipping := decimal.RequireFromString("0.00")
	notes := "leave at door"
	out := f.svc.Update(context.Background(), "u1", UpdateRequest{
		OrderID:       "o1",
		Items:         []LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 2}},
		ShippingTotal: &shipping,
		Notes:         &notes,
	})

	require.True(t, out.Success)
	assert.True(t, out.Value.ShippingTotal.IsZero())
	assert.Equal(t, "leave at door", out.Value.Notes)
	assert.True(t, decimal.RequireFromString("22.60").Equal(out.Value.GrandTotal))
}

func TestUpdate_UnknownOrderIsNotFound(t *testing.T) {
	f := newServiceFixture(daypackItem())

	out := f.svc.Update(context.Background(), "u1", UpdateRequest{
		OrderID: "nope",
		Items:   []LineRequest{{ItemID: "i1", VariantID: "v1", Quantity: 1}},
	})

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeNotFound, out.Code)
}

func TestUpdate_EmptyItemsRejected(t *testing.T) {
	f := newServiceFixture(daypackItem())
	f.orders.byID["o1"] = existingPendingOrder()

	out := f.svc.Update(context.Background(), "u1", UpdateRequest{OrderID: "o1"})

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeValidation, out.Code)
	assert.Equal(t, "At least one order item is required", out.Message)
}

// --- Delete ---

func TestDelete_ReturnsConfirmation(t *testing.T) {
	f := newServiceFixture()
	f.orders.byID["o1"] = existingPendingOrder()

	out := f.svc.Delete(context.Background(), "u1", "o1")

	require.True(t, out.Success)
	assert.Equal(t, "o1", out.Value.ID)
	assert.Equal(t, int64(1001), out.Value.OrderNumber)
	assert.Equal(t, "Order deleted successfully", out.Value.Message)
	assert.True(t, f.orders.deleted)
	assert.Equal(t, 1, f.tx.calls)
}

func TestDelete_OwnershipMismatchIsNotFound(t *testing.T) {
	f := newServiceFixture()
	f.orders.byID["o1"] = existingPendingOrder()

	out := f.svc.Delete(context.Background(), "intruder", "o1")

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeNotFound, out.Code)
	assert.False(t, f.orders.deleted)
}

func TestDelete_PersistErrorIsInternal(t *testing.T) {
	f := newServiceFixture()
	f.orders.byID["o1"] = existingPendingOrder()
	f.orders.deleteErr = errors.New("db write failed")

	out := f.svc.Delete(context.Background(), "u1", "o1")

	require.False(t, out.Success)
	assert.Equal(t, outcome.CodeInternal, out.Code)
}
