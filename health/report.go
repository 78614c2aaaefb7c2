package health

import (
	"context"
	"sync"
	"time"
)

// Report is the composite health snapshot served by the health_check tool.
type Report struct {
	Status       string            `json:"status"`
	Server       string            `json:"server,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Connectivity string            `json:"connectivity,omitempty"`
	Services     map[string]string `json:"services"`
}

// Aggregator combines registered checkers into a single report. A failing
// component degrades the report; it never turns the health_check call itself
// into a failure.
type Aggregator struct {
	server string

	mu       sync.RWMutex
	checkers []Checker
}

// NewAggregator creates an aggregator identified by the given server name.
func NewAggregator(server string, checkers ...Checker) *Aggregator {
	return &Aggregator{server: server, checkers: checkers}
}

// Register adds a checker.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, c)
}

// Report runs all checkers and aggregates their results. The overall status
// is the worst individual status.
func (a *Aggregator) Report(ctx context.Context) Report {
	a.mu.RLock()
	checkers := make([]Checker, len(a.checkers))
	copy(checkers, a.checkers)
	a.mu.RUnlock()

	report := Report{
		Server:    a.server,
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]string, len(checkers)),
	}

	overall := StatusHealthy
	connectivity := ""
	for _, c := range checkers {
		res := c.Check(ctx)
		if res.Status > overall {
			overall = res.Status
		}

		detail := res.Status.String()
		if res.Error != nil {
			detail = "error: " + res.Error.Error()
		} else if res.Message != "" && res.Status != StatusHealthy {
			detail = res.Status.String() + ": " + res.Message
		}
		report.Services[c.Name()] = detail

		if c.Name() == BackendCheckerName {
			if res.Status == StatusHealthy {
				connectivity = "connected"
			} else {
				connectivity = "disconnected"
			}
		}
	}

	report.Status = overall.String()
	report.Connectivity = connectivity
	return report
}
