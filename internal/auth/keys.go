package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultKeyTTL             = time.Hour
	defaultMinRefreshInterval = 30 * time.Second
	maxJWKSBodySize           = 64 * 1024
)

// KeyCache keeps the tenant's RSA signing keys in memory, keyed by kid, and
// refetches them when the TTL expires or an unknown kid shows up. Fetch
// attempts are at least minInterval apart; while the tenant is unreachable
// previously fetched keys keep being served.
type KeyCache struct {
	url         string
	client      *http.Client
	ttl         time.Duration
	minInterval time.Duration
	clock       func() time.Time
	logger      *zap.Logger

	// refreshMu serializes fetches; mu guards the fields below and is never
	// held across the HTTP round trip.
	refreshMu sync.Mutex

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time
}

// KeyCacheOption configures KeyCache behaviour.
type KeyCacheOption func(*KeyCache)

// WithHTTPClient overrides the client used to fetch the JWKS document.
func WithHTTPClient(client *http.Client) KeyCacheOption {
	return func(c *KeyCache) {
		c.client = client
	}
}

// WithTTL sets how long fetched keys are trusted. Non-positive values keep the default.
func WithTTL(ttl time.Duration) KeyCacheOption {
	return func(c *KeyCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMinRefreshInterval sets the minimum gap between two JWKS fetches
// triggered by lookups. Negative values keep the default.
func WithMinRefreshInterval(d time.Duration) KeyCacheOption {
	return func(c *KeyCache) {
		if d >= 0 {
			c.minInterval = d
		}
	}
}

// WithKeyClock overrides the time source, primarily for tests.
func WithKeyClock(clock func() time.Time) KeyCacheOption {
	return func(c *KeyCache) {
		c.clock = clock
	}
}

// WithKeyLogger attaches a logger for refresh events.
func WithKeyLogger(logger *zap.Logger) KeyCacheOption {
	return func(c *KeyCache) {
		c.logger = logger
	}
}

// NewKeyCache creates an empty cache for the given JWKS URL.
func NewKeyCache(jwksURL string, opts ...KeyCacheOption) *KeyCache {
	c := &KeyCache{
		url:         jwksURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		ttl:         defaultKeyTTL,
		minInterval: defaultMinRefreshInterval,
		clock:       time.Now,
		logger:      zap.NewNop(),
		keys:        make(map[string]*rsa.PublicKey),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the public key for kid, refreshing the cache when needed.
func (c *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := c.clock()

	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) <= c.ttl
	lastAttempt := c.lastAttempt
	c.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if !lastAttempt.IsZero() && now.Sub(lastAttempt) < c.minInterval {
		if ok {
			return key, nil
		}
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	if err := c.refresh(ctx, lastAttempt); err != nil {
		if ok {
			c.logger.Warn("JWKS refresh failed, serving cached key",
				zap.String("kid", kid),
				zap.Error(err),
			)
			return key, nil
		}
		return nil, fmt.Errorf("refresh JWKS: %w", err)
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}
	return key, nil
}

// Len reports how many keys are cached.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Refresh replaces the cached keys with the current JWKS document,
// regardless of when the last fetch happened.
func (c *KeyCache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.fetchLocked(ctx)
}

// refresh fetches unless another caller already attempted a fetch since seen.
func (c *KeyCache) refresh(ctx context.Context, seen time.Time) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	attempted := !c.lastAttempt.Equal(seen)
	c.mu.RUnlock()
	if attempted {
		return nil
	}
	return c.fetchLocked(ctx)
}

// fetchLocked must be called with refreshMu held.
func (c *KeyCache) fetchLocked(ctx context.Context) error {
	c.mu.Lock()
	c.lastAttempt = c.clock()
	c.mu.Unlock()

	keys, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = c.clock()
	c.mu.Unlock()

	c.logger.Debug("JWKS refreshed", zap.String("url", c.url), zap.Int("keys", len(keys)))
	return nil
}

func (c *KeyCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch keys: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			c.logger.Warn("skipping malformed JWKS key", zap.String("kid", k.Kid), zap.Error(err))
			continue
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

var errBadExponent = errors.New("RSA exponent out of range")

func parseRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, fmt.Errorf("empty key material")
	}
	if len(eBytes) > 4 {
		return nil, fmt.Errorf("%w: %d bytes", errBadExponent, len(eBytes))
	}
	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes).Int64()
	if e < 3 {
		return nil, fmt.Errorf("%w: %d", errBadExponent, e)
	}
	return &rsa.PublicKey{N: n, E: int(e)}, nil
}
