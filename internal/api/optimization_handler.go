package api

import (
	"net/http"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	"caretransport/dispatch/internal/services"

	"github.com/go-chi/chi/v5"
)

type submitOptimizationRequest struct {
	Date      string              `json:"date"`
	StartTime models.TimeOfDay    `json:"start_time"`
	EndTime   models.TimeOfDay    `json:"end_time"`
	RouteType constants.RouteType `json:"route_type"`
}

func taskIDParam(r *http.Request) models.OptimizationTaskID {
	return models.OptimizationTaskID(chi.URLParam(r, "taskID"))
}

// SubmitOptimization handles POST /api/v1/optimizations
func (h *Handlers) SubmitOptimization() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req submitOptimizationRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}
		day, err := requireDay(req.Date, "date")
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}

		task, err := h.deps.Services.Optimization.SubmitOptimization(r.Context(), services.SubmitOptimizationInput{
			CompanyID: tenant(r).CompanyID,
			Date:      day,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			RouteType: req.RouteType,
		})
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Optimization submitted", task, http.StatusAccepted)
	}
}

// RefreshOptimization handles GET /api/v1/optimizations/{taskID}
func (h *Handlers) RefreshOptimization() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		task, err := h.deps.Services.Optimization.RefreshOptimization(r.Context(), tenant(r).CompanyID, taskIDParam(r))
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Optimization is "+string(task.Status), task)
	}
}

// ApplyOptimization handles POST /api/v1/optimizations/{taskID}/apply
func (h *Handlers) ApplyOptimization() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		t := tenant(r)
		result, err := h.deps.Services.Optimization.ApplyOptimizationResult(r.Context(), t.CompanyID, taskIDParam(r), t.UserID)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Optimization applied", result)
	}
}
