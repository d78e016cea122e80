package integration

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/coffee-env/internal/api"
	"github.com/eugenenazirov/coffee-env/internal/auth"
	"github.com/eugenenazirov/coffee-env/internal/environment"
)

func performRequest(t *testing.T, handler http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIntegrationFlow(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tenant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	t.Cleanup(tenant.Close)

	env := environment.Development()
	env.Auth.Domain = tenant.URL

	provider, err := auth.NewProvider(env.Auth)
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	verifier := auth.NewVerifier(provider, auth.NewKeyCache(provider.JWKSURL()))
	handler := api.NewRouter(api.NewHandler(env, provider, verifier), zaptest.NewLogger(t))

	rec := performRequest(t, handler, "/api/environment", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from environment, got %d", rec.Code)
	}
	var served environment.Environment
	if err := json.NewDecoder(rec.Body).Decode(&served); err != nil {
		t.Fatalf("decode environment: %v", err)
	}
	if served != env {
		t.Fatalf("expected served record %+v, got %+v", env, served)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    provider.Issuer(),
			Subject:   "auth0|barista",
			Audience:  jwt.ClaimStrings{served.Auth.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Permissions: []string{"get:drinks-detail"},
	})
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rec = performRequest(t, handler, "/api/session", map[string]string{"Authorization": "Bearer " + signed})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from session, got %d: %s", rec.Code, rec.Body.String())
	}

	var session struct {
		Subject     string   `json:"subject"`
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Subject != "auth0|barista" || len(session.Permissions) != 1 {
		t.Fatalf("unexpected session %+v", session)
	}

	if _, err := verifier.Verify(context.Background(), signed); err != nil {
		t.Fatalf("expected token to verify directly: %v", err)
	}
}
