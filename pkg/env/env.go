package env

import "os"

// Get reads key from the process environment. Unset and empty both fall back,
// so a blank PORT= in a unit file behaves like no PORT at all.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
