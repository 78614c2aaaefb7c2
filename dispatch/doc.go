// Package dispatch sends authenticated, timeout-bounded HTTP requests to the
// analytics backend. It resolves tool routes to backend services, attaches
// the session's bearer token and cookies, retries exactly once after an
// unauthorized response, and classifies every failure into a typed error.
package dispatch
