package jobs

import (
	"context"
	"fmt"
	"time"

	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
)

// TenantResult is the outcome of one job run for one company. A failing
// company never stops the run for the others.
type TenantResult struct {
	CompanyID models.CompanyID `json:"company_id"`
	Processed int              `json:"processed"`
	Failed    int              `json:"failed"`
	Err       string           `json:"error,omitempty"`
}

// Job is a background task that runs per company
type Job interface {
	Name() string
	Run(ctx context.Context) ([]TenantResult, error)
}

// tenantFunc processes one company and reports processed and failed counts
type tenantFunc func(ctx context.Context, companyID models.CompanyID) (processed int, failed int, err error)

// runPerTenant calls fn for every active company, isolating failures
func runPerTenant(ctx context.Context, name string, store *repositories.Store, m *metrics.MetricsRegistry, clk clock.Clock, fn tenantFunc) ([]TenantResult, error) {
	start := clk.Now()
	logging.Info("Job started", "job", name)

	companies, err := store.Directory.ListActiveCompanyIDs(ctx)
	if err != nil {
		logging.Error("Job could not list companies", "job", name, "error", err)
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	results := make([]TenantResult, 0, len(companies))
	succeeded, failed := 0, 0
	for _, companyID := range companies {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		result := TenantResult{CompanyID: companyID}
		result.Processed, result.Failed, err = fn(ctx, companyID)
		if err != nil {
			result.Err = err.Error()
			logging.WithJob(name, string(companyID)).Errorw("Job failed for company", "error", err)
		}
		if err != nil || result.Failed > 0 {
			failed++
		} else {
			succeeded++
		}
		results = append(results, result)
	}

	took := clk.Now().Sub(start)
	m.ObserveJob(name, took, succeeded, failed)
	logging.Info("Job completed",
		"job", name,
		"companies", len(companies),
		"failed_companies", failed,
		"duration", took.Truncate(time.Millisecond).String())
	return results, nil
}

// RunScheduled runs job every interval until ctx is done. The first run
// happens after one interval.
func RunScheduled(ctx context.Context, job Job, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := job.Run(ctx); err != nil {
				logging.Error("Error in scheduled run", "job", job.Name(), "error", err)
			}
		case <-ctx.Done():
			logging.Info("Shutting down scheduled job", "job", job.Name())
			return
		}
	}
}
