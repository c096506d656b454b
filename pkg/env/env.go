package env

import "os"

// Get reads an environment variable, falling back when it is unset or
// empty. It covers the few knobs read before the typed config loads,
// such as the logger's service name.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
