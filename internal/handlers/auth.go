package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/expensetracker/apiserver/internal/ratelimit"
	"github.com/expensetracker/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// AuthHandler provides registration, login and identity endpoints.
type AuthHandler struct {
	authService *services.AuthService
	logger      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{authService: authService, logger: logger}
}

// AuthRouter registers auth routes on the given router. Register and login
// are throttled per client IP by limiter.
func AuthRouter(r chi.Router, authService *services.AuthService, limiter ratelimit.Limiter, logger *slog.Logger) {
	handler := NewAuthHandler(authService, logger)
	throttle := RateLimit(limiter, logger)

	r.With(throttle).Post("/register", handler.Register)
	r.With(throttle).Post("/login", handler.Login)
	r.With(RequireAuth(authService)).Get("/me", handler.Me)
}

// RequireAuth verifies the bearer token and stores its claims in the request
// context.
func RequireAuth(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				writeError(w, http.StatusUnauthorized, "No token")
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			claims, err := authService.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// Register creates a credential record. No token is returned.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if _, err := h.authService.Register(r.Context(), req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, services.ErrMissingInput):
			writeError(w, http.StatusBadRequest, "Email & password required")
		case errors.Is(err, services.ErrDuplicateUser):
			writeError(w, http.StatusBadRequest, "User already exists")
		default:
			h.logger.Error("register failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to register user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "User registered successfully"})
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// Me returns the identity carried by the caller's token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := ClaimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{ID: claims.UserID, Email: claims.Email})
}
