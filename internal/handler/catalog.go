package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storekit/storefront/internal/domain/catalog"
)

type variantResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
}

type itemResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Variants    []variantResponse `json:"variants"`
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	item, err := h.catalog.GetByID(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Item not found")
			return
		}
		zctx.From(r.Context()).Error("get item", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	variants := make([]variantResponse, len(item.Variants))
	for i, v := range item.Variants {
		variants[i] = variantResponse{
			ID:            v.ID,
			Name:          v.Name,
			Price:         v.Price,
			StockQuantity: v.StockQuantity,
		}
	}
	writeJSON(w, http.StatusOK, itemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Variants:    variants,
	})
}
