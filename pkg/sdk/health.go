package recherche

import (
	"context"
	"errors"
	"time"

	healthuc "github.com/kailas-cloud/recherche/internal/usecase/health"
)

var errUnhealthy = errors.New("backend unhealthy")

// HealthStatus is the aggregated backend health.
type HealthStatus struct {
	Status string            // "ok" or "error"
	Checks map[string]string // component → "ok"/"error"
}

// Health checks the backend.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.health.Check(ctx)

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	var err error
	if report.Status != healthuc.Healthy {
		err = errUnhealthy
	}
	c.obs.observe("health", start, err)
	return HealthStatus{Status: string(report.Status), Checks: checks}
}
