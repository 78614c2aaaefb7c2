// Package observe provides structured logging, tracing, and metrics for the
// dispatch layer. Credentials and token values are never emitted.
package observe
