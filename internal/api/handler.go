package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/eugenenazirov/coffee-env/internal/auth"
	"github.com/eugenenazirov/coffee-env/internal/environment"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// TokenVerifier validates bearer tokens issued by the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (auth.Claims, error)
}

// Handler serves the selected environment record and the login helpers built from it.
type Handler struct {
	env      environment.Environment
	provider *auth.Provider
	verifier TokenVerifier

	clock    func() time.Time
	newState func() string
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithStateGenerator overrides how authorize state values are minted.
func WithStateGenerator(fn func() string) HandlerOption {
	return func(h *Handler) {
		h.newState = fn
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(env environment.Environment, provider *auth.Provider, verifier TokenVerifier, opts ...HandlerOption) *Handler {
	h := &Handler{
		env:      env,
		provider: provider,
		verifier: verifier,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		newState: auth.NewState,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:      "ok",
		Environment: h.env.Name(),
		Production:  h.env.Production,
		Timestamp:   h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	_ = r
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, h.env)
}

// handleLogin redirects to the tenant's authorize endpoint. The state value
// travels in the URL only; the single-page app compares it against the one it
// gets back on the callback address.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.provider.LoginURL(h.newState()), http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.provider.LogoutURL(), http.StatusFound)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	token, err := auth.BearerToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		return
	}

	claims, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAudienceMismatch):
			writeError(w, http.StatusForbidden, "Forbidden", err.Error(), "request a token for audience "+h.env.Auth.Audience)
		default:
			writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		}
		return
	}

	resp := sessionResponse{
		Subject:     claims.Subject,
		Permissions: claims.Permissions,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC()
	}
	if resp.Permissions == nil {
		resp.Permissions = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status      string    `json:"status"`
	Environment string    `json:"environment"`
	Production  bool      `json:"production"`
	Timestamp   time.Time `json:"timestamp"`
}

type sessionResponse struct {
	Subject     string    `json:"subject"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}
