package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a non-critical component is failing; search still works, possibly in fallback mode.
	Degraded Status = "degraded"
	// Unhealthy indicates a critical component is failing.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// defaultCheckTimeout bounds each component check.
const defaultCheckTimeout = 5 * time.Second

// Component is a named dependency. A failing critical component makes the service Unhealthy.
type Component struct {
	Name     string
	Checker  Checker
	Critical bool
}

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	components []Component
	timeout    time.Duration
}

// New creates a Service. Components with a nil Checker are skipped.
func New(components ...Component) *Service {
	active := make([]Component, 0, len(components))
	for _, c := range components {
		if c.Checker != nil {
			active = append(active, c)
		}
	}
	return &Service{components: active, timeout: defaultCheckTimeout}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.components))
	status := Healthy

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range s.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := c.Checker.HealthCheck(cctx); err != nil {
				res = CheckError
			}

			mu.Lock()
			defer mu.Unlock()
			checks[c.Name] = res
			if res == CheckError {
				if c.Critical {
					status = Unhealthy
				} else if status == Healthy {
					status = Degraded
				}
			}
		}()
	}
	wg.Wait()

	return Report{Status: status, Checks: checks}
}
