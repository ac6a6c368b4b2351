package env

import (
	"os"
	"strings"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	return First(fallback, key)
}

// First returns the first non-blank value among keys, checked in order.
// Service-scoped names (REGISTER_*) are listed ahead of shared ones.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}
