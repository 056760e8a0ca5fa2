// Package order implements the order aggregate: pricing with jurisdictional
// tax, stock validation, and the transactional create/update/delete
// lifecycle.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order does not exist or does not belong to
// the requesting user. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("order not found")

// Status is the closed order status vocabulary. External strings are mapped
// through ParseStatus; no free-form status values circulate past that
// boundary.
type Status int

const (
	StatusPending Status = iota + 1
	StatusPaid
	StatusShipped
	StatusDelivered
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusPending:   "Pending",
	StatusPaid:      "Paid",
	StatusShipped:   "Shipped",
	StatusDelivered: "Delivered",
	StatusCancelled: "Cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Modifiable reports whether orders in this status accept mutations. Once an
// order is paid it is frozen.
func (s Status) Modifiable() bool {
	return s == StatusPending
}

// ParseStatus maps an external status string to the enum, rejecting anything
// outside the fixed vocabulary.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, errors.Errorf("unknown order status %q", name)
}

// Order is the aggregate root. It is always created, updated, and deleted
// together with its child rows in one transaction.
type Order struct {
	ID            string
	UserID        string
	OrderNumber   int64
	OrderDate     time.Time
	Status        Status
	Subtotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	GrandTotal    decimal.Decimal
	Notes         string

	Items           []Item
	ShippingAddress Address
	BillingAddress  Address
	Payment         Payment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one order line. UnitPrice is the catalog price captured when the
// line was first added and never recomputed afterwards.
type Item struct {
	ID         string
	OrderID    string
	ItemID     string
	VariantID  string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Address is a frozen copy of the address fields at order time. Later edits
// to a user's saved addresses never alter historical orders.
type Address struct {
	FullName      string
	Line1         string
	Line2         string
	City          string
	ProvinceState string
	PostalCode    string
	Country       string
}

// Payment references the payment method chosen for the order. Raw card data
// never lives on the order.
type Payment struct {
	ID              string
	PaymentMethodID string
	Provider        string
}

// Repository defines persistence for the order aggregate. All methods join
// the transaction carried by ctx when one is open.
type Repository interface {
	// Add inserts the order with all child rows and assigns the sequential
	// order number onto o.OrderNumber.
	Add(ctx context.Context, o *Order) error
	// FindByUserAndID returns the full aggregate only when it belongs to
	// userID. Returns ErrNotFound otherwise.
	FindByUserAndID(ctx context.Context, userID, orderID string) (*Order, error)
	// Update replaces the order row and its child rows.
	Update(ctx context.Context, o *Order) error
	// Delete removes the aggregate. Returns ErrNotFound when no owned order
	// matches.
	Delete(ctx context.Context, userID, orderID string) error
}

// TxRunner scopes a function to one storage transaction. Repository calls
// made with the context passed to fn join that transaction; fn returning an
// error rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
