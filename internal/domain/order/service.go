package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storekit/storefront/internal/domain/outcome"
	"github.com/storekit/storefront/internal/domain/user"
)

// Validation messages surfaced through failed outcomes.
const (
	msgNoItems            = "At least one order item is required"
	msgOrderNotFound      = "Order not found"
	msgUserNotFound       = "User not found"
	msgOrderNotModifiable = "Order can no longer be modified"
	msgOrderDeleted       = "Order deleted successfully"
)

// AddressInput is the request shape for an order address snapshot.
type AddressInput struct {
	FullName      string
	Line1         string
	Line2         string
	City          string
	ProvinceState string
	PostalCode    string
	Country       string
}

func (a AddressInput) validate(label string) string {
	switch {
	case a.FullName == "":
		return label + " address full name is required"
	case a.Line1 == "":
		return label + " address line is required"
	case a.City == "":
		return label + " address city is required"
	case a.PostalCode == "":
		return label + " address postal code is required"
	case a.Country == "":
		return label + " address country is required"
	}
	return ""
}

func (a AddressInput) snapshot() Address {
	return Address{
		FullName:      a.FullName,
		Line1:         a.Line1,
		Line2:         a.Line2,
		City:          a.City,
		ProvinceState: a.ProvinceState,
		PostalCode:    a.PostalCode,
		Country:       a.Country,
	}
}

// PaymentInput is the request shape for the order's payment record.
type PaymentInput struct {
	PaymentMethodID string
	Provider        string
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	Items           []LineRequest
	ShippingAddress AddressInput
	BillingAddress  AddressInput
	Payment         PaymentInput
	ShippingTotal   decimal.Decimal
	Notes           string
}

// UpdateRequest holds the input for mutating an existing order. The item set
// replaces the order's lines; the stock delta for each line is computed
// against the currently persisted quantity. Nil ShippingTotal and Notes leave
// the stored values unchanged.
type UpdateRequest struct {
	OrderID       string
	Items         []LineRequest
	ShippingTotal *decimal.Decimal
	Notes         *string
}

// ItemProjection is the response shape of one order line.
type ItemProjection struct {
	ID         string
	ItemID     string
	VariantID  string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Projection is the plain-data view of an order returned by every lifecycle
// operation.
type Projection struct {
	ID              string
	UserID          string
	OrderNumber     int64
	OrderDate       time.Time
	Status          string
	Subtotal        decimal.Decimal
	TaxTotal        decimal.Decimal
	ShippingTotal   decimal.Decimal
	GrandTotal      decimal.Decimal
	Notes           string
	Items           []ItemProjection
	ShippingAddress Address
	BillingAddress  Address
	Payment         Payment
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DeleteConfirmation is returned instead of the full order after deletion.
type DeleteConfirmation struct {
	ID          string
	OrderNumber int64
	Message     string
}

// Service orchestrates the order lifecycle. Every mutation runs inside one
// transaction via the TxRunner; request validation always completes before
// the first repository call.
type Service struct {
	orders Repository
	users  user.Repository
	engine *Engine
	tx     TxRunner
	clock  func() time.Time
	lg     *zap.Logger
}

// NewService creates an order Service. clock may be nil, in which case
// time.Now is used.
func NewService(
	orders Repository,
	users user.Repository,
	engine *Engine,
	tx TxRunner,
	clock func() time.Time,
	lg *zap.Logger,
) *Service {
	if clock == nil {
		clock = time.Now
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{
		orders: orders,
		users:  users,
		engine: engine,
		tx:     tx,
		clock:  clock,
		lg:     lg,
	}
}

// Create validates the request, prices it, and persists the full aggregate
// in one transaction. No partial order is ever visible: any failed insert
// rolls back the order row and every child row together.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) outcome.Outcome[Projection] {
	if msg := validateCreate(userID, req); msg != "" {
		return outcome.Fail[Projection](outcome.CodeValidation, msg)
	}

	exists, err := s.users.ExistsByID(ctx, userID)
	if err != nil {
		s.lg.Error("create order: check user", zap.Error(err))
		return outcome.Internal[Projection](err)
	}
	if !exists {
		return outcome.Fail[Projection](outcome.CodeNotFound, msgUserNotFound)
	}

	pricing, err := s.engine.Price(ctx, req.Items, req.ShippingAddress.snapshot(), nil)
	if err != nil {
		return mapPricingError[Projection](err, s.lg)
	}

	now := s.clock()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		OrderDate:       now,
		Status:          StatusPending,
		Subtotal:        pricing.Subtotal,
		TaxTotal:        pricing.TaxTotal,
		ShippingTotal:   req.ShippingTotal,
		GrandTotal:      pricing.Subtotal.Add(pricing.TaxTotal).Add(req.ShippingTotal),
		Notes:           req.Notes,
		ShippingAddress: req.ShippingAddress.snapshot(),
		BillingAddress:  req.BillingAddress.snapshot(),
		Payment: Payment{
			ID:              uuid.New().String(),
			PaymentMethodID: req.Payment.PaymentMethodID,
			Provider:        req.Payment.Provider,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.Items = buildItems(o.ID, pricing.Lines)

	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		return s.orders.Add(txCtx, o)
	})
	if err != nil {
		s.lg.Error("create order: persist", zap.Error(err))
		return outcome.Internal[Projection](err)
	}

	return outcome.Ok(project(o))
}

// Get fetches an order owned by userID. Orders belonging to other users are
// reported as not found.
func (s *Service) Get(ctx context.Context, userID, orderID string) outcome.Outcome[Projection] {
	if userID == "" || orderID == "" {
		return outcome.Fail[Projection](outcome.CodeValidation, "User id and order id are required")
	}

	o, err := s.orders.FindByUserAndID(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return outcome.Fail[Projection](outcome.CodeNotFound, msgOrderNotFound)
		}
		s.lg.Error("get order", zap.Error(err))
		return outcome.Internal[Projection](err)
	}

	return outcome.Ok(project(o))
}

// Update replaces the order's lines and recomputes all totals. Stock is
// re-checked per line against the quantity currently persisted, not the
// creation-time quantity, and only on a net increase.
func (s *Service) Update(ctx context.Context, userID string, req UpdateRequest) outcome.Outcome[Projection] {
	switch {
	case userID == "" || req.OrderID == "":
		return outcome.Fail[Projection](outcome.CodeValidation, "User id and order id are required")
	case len(req.Items) == 0:
		return outcome.Fail[Projection](outcome.CodeValidation, msgNoItems)
	case req.ShippingTotal != nil && req.ShippingTotal.IsNegative():
		return outcome.Fail[Projection](outcome.CodeValidation, "Shipping total cannot be negative")
	}

	existing, err := s.orders.FindByUserAndID(ctx, userID, req.OrderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return outcome.Fail[Projection](outcome.CodeNotFound, msgOrderNotFound)
		}
		s.lg.Error("update order: fetch", zap.Error(err))
		return outcome.Internal[Projection](err)
	}

	if !existing.Status.Modifiable() {
		return outcome.Fail[Projection](outcome.CodeValidation, msgOrderNotModifiable)
	}

	// The persisted lines are the baseline for both the stock delta check
	// and the frozen unit prices.
	baseline := make(map[string]BaselineLine, len(existing.Items))
	for _, it := range existing.Items {
		baseline[it.VariantID] = BaselineLine{
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Name:      it.Name,
		}
	}

	pricing, err := s.engine.Price(ctx, req.Items, existing.ShippingAddress, baseline)
	if err != nil {
		return mapPricingError[Projection](err, s.lg)
	}

	existing.Subtotal = pricing.Subtotal
	existing.TaxTotal = pricing.TaxTotal
	if req.ShippingTotal != nil {
		existing.ShippingTotal = *req.ShippingTotal
	}
	existing.GrandTotal = existing.Subtotal.Add(existing.TaxTotal).Add(existing.ShippingTotal)
	if req.Notes != nil {
		existing.Notes = *req.Notes
	}
	existing.Items = buildItems(existing.ID, pricing.Lines)
	existing.UpdatedAt = s.clock()

	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		return s.orders.Update(txCtx, existing)
	})
	if err != nil {
		s.lg.Error("update order: persist", zap.Error(err))
		return outcome.Internal[Projection](err)
	}

	return outcome.Ok(project(existing))
}

// Delete removes the aggregate and its children atomically, returning a
// confirmation projection.
func (s *Service) Delete(ctx context.Context, userID, orderID string) outcome.Outcome[DeleteConfirmation] {
	if userID == "" || orderID == "" {
		return outcome.Fail[DeleteConfirmation](outcome.CodeValidation, "User id and order id are required")
	}

	existing, err := s.orders.FindByUserAndID(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return outcome.Fail[DeleteConfirmation](outcome.CodeNotFound, msgOrderNotFound)
		}
		s.lg.Error("delete order: fetch", zap.Error(err))
		return outcome.Internal[DeleteConfirmation](err)
	}

	err = s.tx.InTx(ctx, func(txCtx context.Context) error {
		return s.orders.Delete(txCtx, userID, orderID)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return outcome.Fail[DeleteConfirmation](outcome.CodeNotFound, msgOrderNotFound)
		}
		s.lg.Error("delete order: persist", zap.Error(err))
		return outcome.Internal[DeleteConfirmation](err)
	}

	return outcome.Ok(DeleteConfirmation{
		ID:          existing.ID,
		OrderNumber: existing.OrderNumber,
		Message:     msgOrderDeleted,
	})
}

// validateCreate checks the request shape. It runs before any repository
// call; a non-empty return means a 400 with that message.
func validateCreate(userID string, req CreateRequest) string {
	switch {
	case userID == "":
		return "User id is required"
	case len(req.Items) == 0:
		return msgNoItems
	case req.ShippingTotal.IsNegative():
		return "Shipping total cannot be negative"
	case req.Payment.PaymentMethodID == "":
		return "Payment method is required"
	case req.Payment.Provider == "":
		return "Payment provider is required"
	}
	if msg := req.ShippingAddress.validate("Shipping"); msg != "" {
		return msg
	}
	if msg := req.BillingAddress.validate("Billing"); msg != "" {
		return msg
	}
	return ""
}

// mapPricingError converts engine errors to outcome failures: lookup misses
// become 404, quantity and stock violations become 400, anything else is an
// unexpected collaborator fault and becomes 500.
func mapPricingError[T any](err error, lg *zap.Logger) outcome.Outcome[T] {
	var (
		infErr *ItemNotFoundError
		vnfErr *VariantNotFoundError
		iqErr  *InvalidQuantityError
		isErr  *InsufficientStockError
		dlErr  *DuplicateLineError
	)
	switch {
	case errors.As(err, &infErr), errors.As(err, &vnfErr):
		return outcome.Fail[T](outcome.CodeNotFound, err.Error())
	case errors.As(err, &iqErr), errors.As(err, &isErr), errors.As(err, &dlErr):
		return outcome.Fail[T](outcome.CodeValidation, err.Error())
	}
	lg.Error("price order", zap.Error(err))
	return outcome.Internal[T](err)
}

func buildItems(orderID string, lines []PricedLine) []Item {
	items := make([]Item, len(lines))
	for i, line := range lines {
		items[i] = Item{
			ID:         uuid.New().String(),
			OrderID:    orderID,
			ItemID:     line.ItemID,
			VariantID:  line.VariantID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			TotalPrice: line.TotalPrice,
		}
	}
	return items
}

func project(o *Order) Projection {
	items := make([]ItemProjection, len(o.Items))
	for i, it := range o.Items {
		items[i] = ItemProjection{
			ID:         it.ID,
			ItemID:     it.ItemID,
			VariantID:  it.VariantID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		}
	}
	return Projection{
		ID:              o.ID,
		UserID:          o.UserID,
		OrderNumber:     o.OrderNumber,
		OrderDate:       o.OrderDate,
		Status:          o.Status.String(),
		Subtotal:        o.Subtotal,
		TaxTotal:        o.TaxTotal,
		ShippingTotal:   o.ShippingTotal,
		GrandTotal:      o.GrandTotal,
		Notes:           o.Notes,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Payment:         o.Payment,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
