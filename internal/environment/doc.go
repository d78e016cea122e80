// Package environment holds the compiled-in front-end environment records
// (API server base URL and Auth0 settings). The development record is built
// by default; building with the "production" tag swaps in the production
// record. Records are plain values and are never mutated after startup.
package environment
