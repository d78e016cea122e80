// Package application provides application initialization and dependency wiring.
// It resolves the selected environment record, builds the Auth0 provider and
// token verifier from it, and assembles the handlers, router and HTTP server,
// keeping the main package focused on CLI parsing and orchestration.
package application
