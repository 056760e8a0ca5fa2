package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/storekit/storefront/internal/domain/order"
)

type orderLineRequest struct {
	ItemID    string `json:"itemId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type addressRequest struct {
	FullName      string `json:"fullName"`
	Line1         string `json:"line1"`
	Line2         string `json:"line2"`
	City          string `json:"city"`
	ProvinceState string `json:"provinceState"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
}

type paymentRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
	Provider        string `json:"provider"`
}

type createOrderRequest struct {
	Items           []orderLineRequest `json:"items"`
	ShippingAddress addressRequest     `json:"shippingAddress"`
	BillingAddress  addressRequest     `json:"billingAddress"`
	Payment         paymentRequest     `json:"payment"`
	ShippingTotal   decimal.Decimal    `json:"shippingTotal"`
	Notes           string             `json:"notes"`
}

type updateOrderRequest struct {
	Items         []orderLineRequest `json:"items"`
	ShippingTotal *decimal.Decimal   `json:"shippingTotal"`
	Notes         *string            `json:"notes"`
}

type orderLineResponse struct {
	ID         string          `json:"id"`
	ItemID     string          `json:"itemId"`
	VariantID  string          `json:"variantId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type addressResponse struct {
	FullName      string `json:"fullName"`
	Line1         string `json:"line1"`
	Line2         string `json:"line2,omitempty"`
	City          string `json:"city"`
	ProvinceState string `json:"provinceState,omitempty"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     int64               `json:"orderNumber"`
	OrderDate       time.Time           `json:"orderDate"`
	Status          string              `json:"status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	TaxTotal        decimal.Decimal     `json:"taxTotal"`
	ShippingTotal   decimal.Decimal     `json:"shippingTotal"`
	GrandTotal      decimal.Decimal     `json:"grandTotal"`
	Notes           string              `json:"notes,omitempty"`
	Items           []orderLineResponse `json:"items"`
	ShippingAddress addressResponse     `json:"shippingAddress"`
	BillingAddress  addressResponse     `json:"billingAddress"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

type deleteOrderResponse struct {
	ID          string `json:"id"`
	OrderNumber int64  `json:"orderNumber"`
	Message     string `json:"message"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decode(w, r, &req) {
		return
	}

	out := h.orders.Create(r.Context(), userID(r.Context()), order.CreateRequest{
		Items:           toLineRequests(req.Items),
		ShippingAddress: toAddressInput(req.ShippingAddress),
		BillingAddress:  toAddressInput(req.BillingAddress),
		Payment: order.PaymentInput{
			PaymentMethodID: req.Payment.PaymentMethodID,
			Provider:        req.Payment.Provider,
		},
		ShippingTotal: req.ShippingTotal,
		Notes:         req.Notes,
	})

	writeOutcome(w, r, out, toOrderResponse)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	out := h.orders.Get(r.Context(), userID(r.Context()), chi.URLParam(r, "orderID"))
	writeOutcome(w, r, out, toOrderResponse)
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if !decode(w, r, &req) {
		return
	}

	out := h.orders.Update(r.Context(), userID(r.Context()), order.UpdateRequest{
		OrderID:       chi.URLParam(r, "orderID"),
		Items:         toLineRequests(req.Items),
		ShippingTotal: req.ShippingTotal,
		Notes:         req.Notes,
	})

	writeOutcome(w, r, out, toOrderResponse)
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	out := h.orders.Delete(r.Context(), userID(r.Context()), chi.URLParam(r, "orderID"))

	writeOutcome(w, r, out, func(res order.DeleteConfirmation) deleteOrderResponse {
		return deleteOrderResponse{
			ID:          res.ID,
			OrderNumber: res.OrderNumber,
			Message:     res.Message,
		}
	})
}

func toLineRequests(lines []orderLineRequest) []order.LineRequest {
	out := make([]order.LineRequest, len(lines))
	for i, l := range lines {
		out[i] = order.LineRequest{ItemID: l.ItemID, VariantID: l.VariantID, Quantity: l.Quantity}
	}
	return out
}

func toAddressInput(a addressRequest) order.AddressInput {
	return order.AddressInput{
		FullName:      a.FullName,
		Line1:         a.Line1,
		Line2:         a.Line2,
		City:          a.City,
		ProvinceState: a.ProvinceState,
		PostalCode:    a.PostalCode,
		Country:       a.Country,
	}
}

func toOrderAddress(a order.Address) addressResponse {
	return addressResponse{
		FullName:      a.FullName,
		Line1:         a.Line1,
		Line2:         a.Line2,
		City:          a.City,
		ProvinceState: a.ProvinceState,
		PostalCode:    a.PostalCode,
		Country:       a.Country,
	}
}

func toOrderResponse(p order.Projection) orderResponse {
	items := make([]orderLineResponse, len(p.Items))
	for i, it := range p.Items {
		items[i] = orderLineResponse{
			ID:         it.ID,
			ItemID:     it.ItemID,
			VariantID:  it.VariantID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		}
	}
	return orderResponse{
		ID:              p.ID,
		OrderNumber:     p.OrderNumber,
		OrderDate:       p.OrderDate,
		Status:          p.Status,
		Subtotal:        p.Subtotal,
		TaxTotal:        p.TaxTotal,
		ShippingTotal:   p.ShippingTotal,
		GrandTotal:      p.GrandTotal,
		Notes:           p.Notes,
		Items:           items,
		ShippingAddress: toOrderAddress(p.ShippingAddress),
		BillingAddress:  toOrderAddress(p.BillingAddress),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
