//go:build production

package environment

var current = production
