// Package session manages the shared authentication state for the analytics
// backend: it exchanges client credentials for a bearer token, tracks token
// expiry and session cookies, and refreshes the token with single-flight
// semantics so concurrent callers never issue duplicate exchanges.
package session
