// Package tools maps named analytics tools onto backend routes. Each tool is
// described by a declarative spec (fields, types, constraints, route); the
// handler validates arguments against the spec before any network call and
// wraps every outcome in the fixed three-state result envelope.
package tools
