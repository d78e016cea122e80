package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/eugenenazirov/coffee-env/internal/environment"
)

// Provider derives the Auth0 endpoints used by the login flow from the
// environment's auth settings.
type Provider struct {
	settings environment.Auth
	base     *url.URL
}

// NewProvider checks that every auth setting is present and parses the tenant domain.
// A domain without a scheme is treated as an https host.
func NewProvider(settings environment.Auth) (*Provider, error) {
	var missing []string
	if strings.TrimSpace(settings.Domain) == "" {
		missing = append(missing, "domain")
	}
	if strings.TrimSpace(settings.Audience) == "" {
		missing = append(missing, "audience")
	}
	if strings.TrimSpace(settings.ClientID) == "" {
		missing = append(missing, "clientId")
	}
	if strings.TrimSpace(settings.CallbackURL) == "" {
		missing = append(missing, "callbackUrl")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteSettings, strings.Join(missing, ", "))
	}

	raw := strings.TrimRight(settings.Domain, "/")
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid domain %q", ErrIncompleteSettings, settings.Domain)
	}

	return &Provider{settings: settings, base: base}, nil
}

// Settings returns the settings the provider was built from.
func (p *Provider) Settings() environment.Auth {
	return p.settings
}

// Issuer returns the expected "iss" claim of tokens minted by the tenant.
func (p *Provider) Issuer() string {
	return p.endpoint("/")
}

// JWKSURL returns the location of the tenant's signing keys.
func (p *Provider) JWKSURL() string {
	return p.endpoint("/.well-known/jwks.json")
}

// LoginURL builds the implicit-flow authorize URL the browser is sent to.
func (p *Provider) LoginURL(state string) string {
	params := url.Values{}
	params.Set("audience", p.settings.Audience)
	params.Set("response_type", "token")
	params.Set("client_id", p.settings.ClientID)
	params.Set("redirect_uri", p.settings.CallbackURL)
	if state != "" {
		params.Set("state", state)
	}
	return p.endpoint("/authorize") + "?" + params.Encode()
}

// LogoutURL builds the tenant logout URL returning to the callback address.
func (p *Provider) LogoutURL() string {
	params := url.Values{}
	params.Set("client_id", p.settings.ClientID)
	params.Set("returnTo", p.settings.CallbackURL)
	return p.endpoint("/v2/logout") + "?" + params.Encode()
}

// NewState returns an opaque value for the authorize request's state parameter.
func NewState() string {
	return uuid.NewString()
}

func (p *Provider) endpoint(path string) string {
	u := *p.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	return u.String()
}
