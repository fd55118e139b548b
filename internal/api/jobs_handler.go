package api

import (
	"net/http"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/jobs"
	"caretransport/dispatch/internal/logging"

	"github.com/go-chi/chi/v5"
)

type jobRunResult struct {
	Job         string              `json:"job"`
	TriggeredBy string              `json:"triggered_by,omitempty"`
	TriggeredAt string              `json:"triggered_at"`
	DurationMs  int64               `json:"duration_ms"`
	Tenants     []jobs.TenantResult `json:"tenants"`
}

// ListJobs handles GET /api/v1/jobs
func (h *Handlers) ListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		common.RespondSuccess(w, initTime, "Jobs fetched", map[string][]string{"jobs": h.deps.Jobs.Names()})
	}
}

// TriggerJob handles POST /api/v1/jobs/{name}/run. The job runs for every
// active company, not only the caller's.
func (h *Handlers) TriggerJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		name := chi.URLParam(r, "name")
		if !h.deps.Jobs.Has(name) {
			common.RespondError(w, initTime, constants.ErrCodeUnknownJob, constants.GetRouteErrorMessage(constants.ErrCodeUnknownJob), http.StatusNotFound)
			return
		}

		t := tenant(r)
		logging.Info("Job manually triggered", "job", name, "company_id", string(t.CompanyID), "user_id", string(t.UserID))

		results, err := h.deps.Jobs.Trigger(r.Context(), name)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Job completed", jobRunResult{
			Job:         name,
			TriggeredBy: string(t.UserID),
			TriggeredAt: initTime.Format(time.RFC3339),
			DurationMs:  time.Since(initTime).Milliseconds(),
			Tenants:     results,
		})
	}
}
