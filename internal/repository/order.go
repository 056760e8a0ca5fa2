package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/storekit/storefront/internal/domain/order"
)

func newUUID() string { return uuid.New().String() }

const (
	insertOrderSQL = `INSERT INTO orders
		(id, user_id, order_date, status_id, subtotal, tax_total, shipping_total, grand_total, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING order_number`

	insertOrderItemSQL = `INSERT INTO order_items
		(id, order_id, item_id, variant_id, name, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertOrderAddressSQL = `INSERT INTO order_addresses
		(id, order_id, kind, full_name, line1, line2, city, province_state, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertOrderPaymentSQL = `INSERT INTO order_payments (id, order_id, payment_method_id, provider)
		VALUES ($1, $2, $3, $4)`

	findOrderSQL = `SELECT id, user_id, order_number, order_date, status_id,
		subtotal, tax_total, shipping_total, grand_total, notes, created_at, updated_at
		FROM orders WHERE id = $1 AND user_id = $2`

	findOrderItemsSQL = `SELECT id, order_id, item_id, variant_id, name, quantity, unit_price, total_price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	findOrderAddressesSQL = `SELECT kind, full_name, line1, line2, city, province_state, postal_code, country
		FROM order_addresses WHERE order_id = $1`

	findOrderPaymentSQL = `SELECT id, payment_method_id, provider
		FROM order_payments WHERE order_id = $1`

	updateOrderSQL = `UPDATE orders SET
		status_id = $2, subtotal = $3, tax_total = $4, shipping_total = $5,
		grand_total = $6, notes = $7, updated_at = $8
		WHERE id = $1`

	deleteOrderChildrenSQL = `DELETE FROM order_items WHERE order_id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1 AND user_id = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Callers
// are expected to run mutations inside DB.InTx so the aggregate's rows are
// written or removed as one unit.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository over the given DB.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Add inserts the order row and all child rows, assigning the sequential
// order number from the database sequence.
func (r *OrderRepository) Add(ctx context.Context, o *order.Order) error {
	q := r.db.q(ctx)

	err := q.QueryRow(ctx, insertOrderSQL,
		o.ID, o.UserID, o.OrderDate, int(o.Status),
		o.Subtotal, o.TaxTotal, o.ShippingTotal, o.GrandTotal,
		o.Notes, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.OrderNumber)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	if err := r.insertChildren(ctx, q, o); err != nil {
		return err
	}
	return nil
}

// FindByUserAndID loads the full aggregate, returning order.ErrNotFound when
// the order is absent or owned by someone else.
func (r *OrderRepository) FindByUserAndID(ctx context.Context, userID, orderID string) (*order.Order, error) {
	q := r.db.q(ctx)

	var (
		o        order.Order
		statusID int
	)
	err := q.QueryRow(ctx, findOrderSQL, orderID, userID).Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.OrderDate, &statusID,
		&o.Subtotal, &o.TaxTotal, &o.ShippingTotal, &o.GrandTotal,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order %q: %w", orderID, err)
	}
	o.Status = order.Status(statusID)

	rows, err := q.Query(ctx, findOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("finding items for order %q: %w", orderID, err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.VariantID,
			&it.Name, &it.Quantity, &it.UnitPrice, &it.TotalPrice)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning items for order %q: %w", orderID, err)
	}

	addrRows, err := q.Query(ctx, findOrderAddressesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("finding addresses for order %q: %w", orderID, err)
	}
	defer addrRows.Close()
	for addrRows.Next() {
		var (
			kind string
			a    order.Address
		)
		if err := addrRows.Scan(&kind, &a.FullName, &a.Line1, &a.Line2,
			&a.City, &a.ProvinceState, &a.PostalCode, &a.Country); err != nil {
			return nil, fmt.Errorf("scanning address for order %q: %w", orderID, err)
		}
		if kind == "billing" {
			o.BillingAddress = a
		} else {
			o.ShippingAddress = a
		}
	}
	if err := addrRows.Err(); err != nil {
		return nil, fmt.Errorf("scanning addresses for order %q: %w", orderID, err)
	}

	err = q.QueryRow(ctx, findOrderPaymentSQL, orderID).Scan(
		&o.Payment.ID, &o.Payment.PaymentMethodID, &o.Payment.Provider,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("finding payment for order %q: %w", orderID, err)
	}

	return &o, nil
}

// Update rewrites the order row and replaces its line items. Addresses and
// payment are creation-time snapshots and stay untouched.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	q := r.db.q(ctx)

	tag, err := q.Exec(ctx, updateOrderSQL,
		o.ID, int(o.Status), o.Subtotal, o.TaxTotal, o.ShippingTotal,
		o.GrandTotal, o.Notes, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	if _, err := q.Exec(ctx, deleteOrderChildrenSQL, o.ID); err != nil {
		return fmt.Errorf("clearing items for order %q: %w", o.ID, err)
	}
	for _, it := range o.Items {
		if _, err := q.Exec(ctx, insertOrderItemSQL,
			it.ID, o.ID, it.ItemID, it.VariantID, it.Name,
			it.Quantity, it.UnitPrice, it.TotalPrice,
		); err != nil {
			return fmt.Errorf("inserting item for order %q: %w", o.ID, err)
		}
	}
	return nil
}

// Delete removes the order; child rows cascade at the schema level so the
// aggregate disappears as one unit.
func (r *OrderRepository) Delete(ctx context.Context, userID, orderID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deleteOrderSQL, orderID, userID)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) insertChildren(ctx context.Context, q querier, o *order.Order) error {
	for _, it := range o.Items {
		if _, err := q.Exec(ctx, insertOrderItemSQL,
			it.ID, o.ID, it.ItemID, it.VariantID, it.Name,
			it.Quantity, it.UnitPrice, it.TotalPrice,
		); err != nil {
			return fmt.Errorf("inserting item for order %q: %w", o.ID, err)
		}
	}

	addresses := []struct {
		kind string
		a    order.Address
	}{
		{"shipping", o.ShippingAddress},
		{"billing", o.BillingAddress},
	}
	for _, entry := range addresses {
		if _, err := q.Exec(ctx, insertOrderAddressSQL,
			newUUID(), o.ID, entry.kind, entry.a.FullName, entry.a.Line1, entry.a.Line2,
			entry.a.City, entry.a.ProvinceState, entry.a.PostalCode, entry.a.Country,
		); err != nil {
			return fmt.Errorf("inserting %s address for order %q: %w", entry.kind, o.ID, err)
		}
	}

	if _, err := q.Exec(ctx, insertOrderPaymentSQL,
		o.Payment.ID, o.ID, o.Payment.PaymentMethodID, o.Payment.Provider,
	); err != nil {
		return fmt.Errorf("inserting payment for order %q: %w", o.ID, err)
	}
	return nil
}
