package handler

import (
	"net"
	"net/http"
	"time"

	"github.com/storekit/storefront/internal/domain/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type logoutResponse struct {
	SessionID   string    `json:"sessionId"`
	LoggedOutAt time.Time `json:"loggedOutAt"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	out := h.login.Login(r.Context(), auth.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	})

	writeOutcome(w, r, out, func(res auth.LoginResult) loginResponse {
		return loginResponse{
			SessionID: res.SessionID,
			UserID:    res.UserID,
			CreatedAt: res.CreatedAt,
			ExpiresAt: res.ExpiresAt,
		}
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	out := h.login.Logout(r.Context(), bearerToken(r))

	writeOutcome(w, r, out, func(res auth.LogoutResult) logoutResponse {
		return logoutResponse{
			SessionID:   res.SessionID,
			LoggedOutAt: res.LoggedOutAt,
		}
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
