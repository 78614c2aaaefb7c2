// Package config loads the bridge configuration from the environment once at
// startup. The resulting Config is immutable for the process lifetime.
package config
