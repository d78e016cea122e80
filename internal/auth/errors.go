package auth

import "errors"

var (
	// ErrIncompleteSettings indicates the identity-provider settings lack a required field.
	ErrIncompleteSettings = errors.New("auth settings are incomplete")
	// ErrMissingToken indicates the request carried no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken indicates the token failed signature, issuer or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrAudienceMismatch indicates the token was issued for a different API.
	ErrAudienceMismatch = errors.New("token audience does not match")
	// ErrKeyNotFound indicates the signing key id is absent from the JWKS document.
	ErrKeyNotFound = errors.New("signing key not found")
)
