package environment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	// NameDevelopment identifies the development variant.
	NameDevelopment = "development"
	// NameProduction identifies the production variant.
	NameProduction = "production"
)

var (
	// ErrUnknownVariant indicates no environment is registered under the requested name.
	ErrUnknownVariant = errors.New("unknown environment variant")
	// ErrIncompleteEnvironment indicates a record with one or more empty fields.
	ErrIncompleteEnvironment = errors.New("environment is incomplete")
)

// Environment is the deployment-specific configuration consumed by the
// front-end bootstrap code.
type Environment struct {
	Production   bool   `json:"production" yaml:"production"`
	APIServerURL string `json:"apiServerUrl" yaml:"apiServerUrl"`
	Auth         Auth   `json:"auth" yaml:"auth"`
}

// Auth carries the identity-provider settings.
type Auth struct {
	Domain      string `json:"domain" yaml:"domain"`
	Audience    string `json:"audience" yaml:"audience"`
	ClientID    string `json:"clientId" yaml:"clientId"`
	CallbackURL string `json:"callbackUrl" yaml:"callbackUrl"`
}

var development = Environment{
	Production:   false,
	APIServerURL: "http://127.0.0.1:5000",
	Auth: Auth{
		Domain:      "dev-why57ily.auth0.com",
		Audience:    "coffee",
		ClientID:    "pklDgLqRLuc4K89MWEGNzS2NoVn7iMJW",
		CallbackURL: "http://127.0.0.1:4200",
	},
}

var production = Environment{
	Production:   true,
	APIServerURL: "https://api.coffeeshop.example.com",
	Auth: Auth{
		Domain:      "dev-why57ily.auth0.com",
		Audience:    "coffee",
		ClientID:    "pklDgLqRLuc4K89MWEGNzS2NoVn7iMJW",
		CallbackURL: "https://coffeeshop.example.com",
	},
}

var aliases = map[string]string{
	"dev":  NameDevelopment,
	"prod": NameProduction,
}

// Current returns the record compiled into this binary.
func Current() Environment {
	return current
}

// Development returns the development record.
func Development() Environment {
	return development
}

// Production returns the production record.
func Production() Environment {
	return production
}

// Variants returns every shipped record keyed by its canonical name.
func Variants() map[string]Environment {
	return map[string]Environment{
		NameDevelopment: development,
		NameProduction:  production,
	}
}

// Names returns the canonical variant names in sorted order.
func Names() []string {
	variants := Variants()
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a variant by name. Matching is case-insensitive and
// accepts the short aliases "dev" and "prod".
func Lookup(name string) (Environment, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	env, ok := Variants()[key]
	if !ok {
		return Environment{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownVariant, name, strings.Join(Names(), ", "))
	}
	return env, nil
}

// Name returns the canonical variant name of the record.
func (e Environment) Name() string {
	if e.Production {
		return NameProduction
	}
	return NameDevelopment
}

// Missing lists the dotted names of empty fields.
func (e Environment) Missing() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("apiServerUrl", e.APIServerURL)
	check("auth.domain", e.Auth.Domain)
	check("auth.audience", e.Auth.Audience)
	check("auth.clientId", e.Auth.ClientID)
	check("auth.callbackUrl", e.Auth.CallbackURL)
	return missing
}

// Validate reports an ErrIncompleteEnvironment error naming every empty field.
func (e Environment) Validate() error {
	if missing := e.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteEnvironment, strings.Join(missing, ", "))
	}
	return nil
}
