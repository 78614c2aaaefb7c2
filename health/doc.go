// Package health reports the status of the bridge and its backend
// dependencies for the health_check tool.
package health
