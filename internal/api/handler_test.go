package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/coffee-env/internal/auth"
	"github.com/eugenenazirov/coffee-env/internal/environment"
)

type stubVerifier struct {
	claims auth.Claims
	err    error
	token  string
}

func (s *stubVerifier) Verify(_ context.Context, rawToken string) (auth.Claims, error) {
	s.token = rawToken
	return s.claims, s.err
}

var fixedNow = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, verifier TokenVerifier) *Handler {
	t.Helper()

	env := environment.Development()
	provider, err := auth.NewProvider(env.Auth)
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	return NewHandler(env, provider, verifier,
		WithClock(func() time.Time { return fixedNow }),
		WithStateGenerator(func() string { return "fixed-state" }),
	)
}

func newTestRouter(t *testing.T, opts ...RouterOption) http.Handler {
	t.Helper()
	return NewRouter(newTestHandler(t, &stubVerifier{}), zaptest.NewLogger(t), opts...)
}

func serve(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, WithLogging(false))

	rec := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "ok" || body.Environment != environment.NameDevelopment || body.Production {
		t.Fatalf("unexpected health body %+v", body)
	}
	if !body.Timestamp.Equal(fixedNow) {
		t.Fatalf("expected timestamp %s, got %s", fixedNow, body.Timestamp)
	}
}

func TestEnvironmentEndpointServesRecord(t *testing.T) {
	router := newTestRouter(t, WithLogging(false))

	rec := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/environment", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if raw["production"] != false || raw["apiServerUrl"] != "http://127.0.0.1:5000" {
		t.Fatalf("unexpected top-level fields %v", raw)
	}
	authSection, ok := raw["auth"].(map[string]any)
	if !ok {
		t.Fatalf("expected auth object, got %T", raw["auth"])
	}
	want := map[string]string{
		"domain":      "dev-why57ily.auth0.com",
		"audience":    "coffee",
		"clientId":    "pklDgLqRLuc4K89MWEGNzS2NoVn7iMJW",
		"callbackUrl": "http://127.0.0.1:4200",
	}
	for key, value := range want {
		if authSection[key] != value {
			t.Fatalf("expected auth.%s=%s, got %v", key, value, authSection[key])
		}
	}
}

func TestLoginRedirectsToAuthorize(t *testing.T) {
	router := newTestRouter(t, WithLogging(false))

	rec := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/login", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location header: %v", err)
	}
	if location.Host != "dev-why57ily.auth0.com" || location.Query().Get("state") != "fixed-state" {
		t.Fatalf("unexpected redirect %s", location)
	}

	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected no cookies, got %v", rec.Result().Cookies())
	}
}

func TestLogoutRedirects(t *testing.T) {
	router := newTestRouter(t, WithLogging(false))

	rec := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/logout", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location header: %v", err)
	}
	if location.Path != "/v2/logout" {
		t.Fatalf("unexpected redirect %s", location)
	}
}

func TestSessionEndpoint(t *testing.T) {
	expires := fixedNow.Add(time.Hour)
	tests := []struct {
		name       string
		header     string
		verifier   *stubVerifier
		wantStatus int
	}{
		{
			name:   "valid token",
			header: "Bearer good",
			verifier: &stubVerifier{claims: auth.Claims{
				RegisteredClaims: jwt.RegisteredClaims{Subject: "auth0|manager", ExpiresAt: jwt.NewNumericDate(expires)},
				Permissions:      []string{"post:drinks"},
			}},
			wantStatus: http.StatusOK,
		},
		{name: "missing header", verifier: &stubVerifier{}, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", verifier: &stubVerifier{err: fmt.Errorf("%w: expired", auth.ErrInvalidToken)}, wantStatus: http.StatusUnauthorized},
		{name: "wrong audience", header: "Bearer other", verifier: &stubVerifier{err: auth.ErrAudienceMismatch}, wantStatus: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(newTestHandler(t, tc.verifier), zaptest.NewLogger(t), WithLogging(false))

			req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := serve(t, router, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantStatus != http.StatusOK {
				return
			}

			var body sessionResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Subject != "auth0|manager" || len(body.Permissions) != 1 || !body.ExpiresAt.Equal(expires) {
				t.Fatalf("unexpected session body %+v", body)
			}
			if tc.verifier.token != "good" {
				t.Fatalf("expected bearer token to reach verifier, got %q", tc.verifier.token)
			}
		})
	}
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %s", got)
	}
}
