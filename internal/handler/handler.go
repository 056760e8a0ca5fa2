// Package handler exposes the services over a thin JSON HTTP surface.
// Outcome status codes map directly onto HTTP status codes and messages are
// surfaced verbatim.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/storekit/storefront/internal/domain/auth"
	"github.com/storekit/storefront/internal/domain/catalog"
	"github.com/storekit/storefront/internal/domain/order"
	"github.com/storekit/storefront/internal/domain/outcome"
	"github.com/storekit/storefront/internal/domain/session"
)

// Handler wires the domain services to HTTP routes.
type Handler struct {
	login    *auth.Service
	orders   *order.Service
	catalog  catalog.Repository
	sessions session.Repository
	clock    func() time.Time
}

// New constructs a Handler. clock may be nil, in which case time.Now is used.
func New(
	login *auth.Service,
	orders *order.Service,
	cat catalog.Repository,
	sessions session.Repository,
	clock func() time.Time,
) *Handler {
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		login:    login,
		orders:   orders,
		catalog:  cat,
		sessions: sessions,
		clock:    clock,
	}
}

// Routes returns the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/items/{itemID}", h.handleGetItem)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Post("/orders", h.handleCreateOrder)
			r.Get("/orders/{orderID}", h.handleGetOrder)
			r.Put("/orders/{orderID}", h.handleUpdateOrder)
			r.Delete("/orders/{orderID}", h.handleDeleteOrder)
		})
	})
	return r
}

type userIDKey struct{}

// requireSession resolves the caller from a bearer session id. The session
// must be active: not logged out and not past expiry.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := bearerToken(r)
		if sessionID == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		sess, err := h.sessions.GetByID(r.Context(), sessionID)
		if err != nil || !sess.ActiveAt(h.clock()) {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOutcome maps an outcome onto the HTTP response: 200 with the mapped
// value on success, the outcome's code and message otherwise.
func writeOutcome[T, R any](w http.ResponseWriter, r *http.Request, out outcome.Outcome[T], mapValue func(T) R) {
	if !out.Success {
		if out.Code == outcome.CodeInternal {
			// The raw error stays in the logs; clients get a generic message.
			zctx.From(r.Context()).Error("internal failure", zap.String("message", out.Message))
			writeError(w, out.Code, "Internal error")
			return
		}
		writeError(w, out.Code, out.Message)
		return
	}
	writeJSON(w, http.StatusOK, mapValue(out.Value))
}

// decode parses the JSON request body into v, reporting malformed bodies as
// a 400 to the client. The bool result tells the caller whether to proceed.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
