//go:build !production

package environment

var current = development
