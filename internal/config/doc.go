// Package config loads the server's runtime configuration from multiple sources
// (YAML files, environment variables, CLI flags) with precedence: CLI flags >
// YAML config > Environment variables > Defaults. The front-end environment
// record itself is compiled in; this package only chooses which variant to serve.
package config
