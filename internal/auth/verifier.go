package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the application view of a verified Auth0 access token.
type Claims struct {
	jwt.RegisteredClaims
	Scope       string   `json:"scope,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission reports whether the token grants the named permission, e.g. "get:drinks-detail".
func (c Claims) HasPermission(permission string) bool {
	return slices.Contains(c.Permissions, permission)
}

// Verifier validates RS256 access tokens issued by the tenant for the configured audience.
type Verifier struct {
	issuer   string
	audience string
	keys     *KeyCache
	leeway   time.Duration
}

// VerifierOption configures Verifier behaviour.
type VerifierOption func(*Verifier)

// WithLeeway tolerates clock skew when checking exp/nbf/iat.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.leeway = d
	}
}

// NewVerifier builds a verifier bound to the provider's issuer and audience.
func NewVerifier(p *Provider, keys *KeyCache, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		issuer:   p.Issuer(),
		audience: p.Settings().Audience,
		keys:     keys,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses rawToken and checks signature, issuer, expiry and audience.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return Claims{}, ErrMissingToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid in token header")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return Claims{}, fmt.Errorf("%w: want %q", ErrAudienceMismatch, v.audience)
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: authorization header must be 'Bearer <token>'", ErrMissingToken)
	}
	return strings.TrimSpace(parts[1]), nil
}
