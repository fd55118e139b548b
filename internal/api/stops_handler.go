package api

import (
	"net/http"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
	"caretransport/dispatch/internal/routing"
	"caretransport/dispatch/internal/services"

	"github.com/go-chi/chi/v5"
)

type addScheduleRequest struct {
	ScheduleID   models.ScheduleID `json:"schedule_id"`
	PickupOrder  *int              `json:"pickup_order"`
	DropoffOrder *int              `json:"dropoff_order"`
	PickupTime   models.TimeOfDay  `json:"pickup_time"`
	DropoffTime  models.TimeOfDay  `json:"dropoff_time"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type reorderRequest struct {
	StopIDs []models.StopID `json:"stop_ids"`
}

type updateStopRequest struct {
	EstimatedTime *models.TimeOfDay   `json:"estimated_time"`
	Notes         *string             `json:"notes"`
	Address       *gormModels.Address `json:"address"`
}

type executeStopRequest struct {
	Outcome    constants.StopOutcome `json:"outcome"`
	ActualTime *time.Time            `json:"actual_time"`
	Notes      string                `json:"notes"`
}

func stopIDParam(r *http.Request) models.StopID {
	return models.StopID(chi.URLParam(r, "stopID"))
}

func scheduleIDParam(r *http.Request) models.ScheduleID {
	return models.ScheduleID(chi.URLParam(r, "scheduleID"))
}

// AddSchedule handles POST /api/v1/routes/{routeID}/schedules
func (h *Handlers) AddSchedule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req addScheduleRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}

		t := tenant(r)
		stops, err := h.deps.Services.Stops.AddScheduleToRoute(r.Context(), services.AddScheduleInput{
			CompanyID:    t.CompanyID,
			RouteID:      routeIDParam(r),
			ScheduleID:   req.ScheduleID,
			PickupOrder:  req.PickupOrder,
			DropoffOrder: req.DropoffOrder,
			PickupTime:   req.PickupTime,
			DropoffTime:  req.DropoffTime,
			ActorID:      t.UserID,
		})
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Schedule added to route", stops, http.StatusCreated)
	}
}

// DeleteSchedule handles DELETE /api/v1/routes/{routeID}/schedules/{scheduleID}
func (h *Handlers) DeleteSchedule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		t := tenant(r)
		if err := h.deps.Services.Stops.DeleteScheduleFromRoute(r.Context(), t.CompanyID, routeIDParam(r), scheduleIDParam(r), t.UserID); err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Schedule removed from route", nil)
	}
}

// CancelSchedule handles POST /api/v1/routes/{routeID}/schedules/{scheduleID}/cancel
func (h *Handlers) CancelSchedule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req reasonRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}

		t := tenant(r)
		stops, err := h.deps.Services.Stops.CancelScheduleOnRoute(r.Context(), t.CompanyID, routeIDParam(r), scheduleIDParam(r), req.Reason, t.UserID)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Schedule cancelled on route", stops)
	}
}

// ReorderStops handles PUT /api/v1/routes/{routeID}/stops/order
func (h *Handlers) ReorderStops() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req reorderRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}

		t := tenant(r)
		stops, err := h.deps.Services.Stops.ReorderStops(r.Context(), t.CompanyID, routeIDParam(r), req.StopIDs, t.UserID)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Stops reordered", stops)
	}
}

// CancelStop handles POST /api/v1/stops/{stopID}/cancel
func (h *Handlers) CancelStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req reasonRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}

		t := tenant(r)
		stops, err := h.deps.Services.Stops.CancelStop(r.Context(), t.CompanyID, stopIDParam(r), req.Reason, t.UserID)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Stop cancelled", stops)
	}
}

// UpdateStop handles PATCH /api/v1/stops/{stopID}
func (h *Handlers) UpdateStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req updateStopRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}

		t := tenant(r)
		stop, err := h.deps.Services.Stops.UpdateStopDetail(r.Context(), t.CompanyID, stopIDParam(r), services.StopDetailUpdate{
			EstimatedTime: req.EstimatedTime,
			Notes:         req.Notes,
			Address:       req.Address,
			ActorID:       t.UserID,
		})
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Stop updated", stop)
	}
}

// ExecuteStop handles POST /api/v1/stops/{stopID}/execute. actual_time
// defaults to now.
func (h *Handlers) ExecuteStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req executeStopRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}
		actual := h.deps.Clock.Now()
		if req.ActualTime != nil {
			actual = *req.ActualTime
		}

		t := tenant(r)
		stop, err := h.deps.Services.Stops.ExecuteStop(r.Context(), t.CompanyID, stopIDParam(r), routing.Execution{
			Outcome:    req.Outcome,
			ActualTime: actual,
			ExecutedBy: t.UserID,
			Notes:      req.Notes,
		})
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Stop executed", stop)
	}
}
