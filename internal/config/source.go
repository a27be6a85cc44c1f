package config

import (
	"os"
	"strings"
)

// Source is a key/value configuration lookup. Services depend on it instead of
// reading the process environment directly.
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads from the process environment. Empty values count as absent.
type EnvSource struct{}

// Lookup implements Source
func (EnvSource) Lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// MapSource is a fixed set of values, mostly for tests
type MapSource map[string]string

// Lookup implements Source
func (m MapSource) Lookup(key string) (string, bool) {
	value, ok := m[key]
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// MasterTokenKey returns the key holding the shared credential for a provider,
// e.g. "reddit" -> "REDDIT_MASTER_ACCESS_TOKEN"
func MasterTokenKey(provider string) string {
	return strings.ToUpper(strings.TrimSpace(provider)) + "_MASTER_ACCESS_TOKEN"
}
