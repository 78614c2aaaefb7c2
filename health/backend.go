package health

import (
	"context"
	"time"

	"github.com/jonwraymond/querybridge/dispatch"
)

// BackendCheckerName is the registered name of the backend connectivity check.
const BackendCheckerName = "backend_api"

// Prober sends a request to the analytics backend.
type Prober interface {
	Send(ctx context.Context, req dispatch.Request) (*dispatch.Response, error)
}

// BackendChecker probes backend connectivity with a non-intrusive metadata
// call through the dispatcher, so the probe exercises the same auth path as
// real tool calls.
type BackendChecker struct {
	prober  Prober
	timeout time.Duration
}

// NewBackendChecker creates a backend connectivity checker. Timeout defaults
// to 10 seconds.
func NewBackendChecker(prober Prober, timeout time.Duration) *BackendChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BackendChecker{prober: prober, timeout: timeout}
}

// Name returns "backend_api".
func (c *BackendChecker) Name() string {
	return BackendCheckerName
}

// Check probes the dataset catalog endpoint.
func (c *BackendChecker) Check(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.prober.Send(ctx, dispatch.Request{
		Endpoint: "get-domain",
		Method:   "GET",
	})
	if err != nil {
		return Unhealthy("backend unreachable", err)
	}
	if len(resp.Data) == 0 {
		return Degraded("backend returned an empty response")
	}
	return Healthy("backend reachable")
}
