// Package secret resolves credential values from the environment without
// ever persisting or logging them.
package secret
