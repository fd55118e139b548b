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

type createSeriesRequest struct {
	Name          string              `json:"name"`
	IntervalWeeks int                 `json:"interval_weeks"`
	StartDate     string              `json:"start_date"`
	EndDate       string              `json:"end_date"`
	DriverID      *models.DriverID    `json:"driver_id"`
	VehicleID     models.VehicleID    `json:"vehicle_id"`
	RouteType     constants.RouteType `json:"route_type"`
	ScheduleIDs   []models.ScheduleID `json:"schedule_ids"`
}

type seriesChildRequest struct {
	ScheduleID    models.ScheduleID `json:"schedule_id"`
	EffectiveFrom string            `json:"effective_from"`
}

type seriesDriverRequest struct {
	DriverID      models.DriverID `json:"driver_id"`
	EffectiveFrom string          `json:"effective_from"`
	Reason        string          `json:"reason"`
}

type cancelSeriesRequest struct {
	CancelFutureRoutes bool   `json:"cancel_future_routes"`
	Reason             string `json:"reason"`
}

type materializeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func seriesIDParam(r *http.Request) models.SeriesID {
	return models.SeriesID(chi.URLParam(r, "seriesID"))
}

// effectiveDay defaults an empty effective_from to today
func (h *Handlers) effectiveDay(raw string) (time.Time, error) {
	d, err := parseDayParam(raw)
	if err != nil {
		return d, err
	}
	if d.IsZero() {
		return models.Day(h.deps.Clock.Now()), nil
	}
	return d, nil
}

// CreateSeries handles POST /api/v1/series
func (h *Handlers) CreateSeries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req createSeriesRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}
		start, err := requireDay(req.StartDate, "start_date")
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		end, err := parseDayParam(req.EndDate)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}

		t := tenant(r)
		in := services.CreateSeriesInput{
			CompanyID:     t.CompanyID,
			Name:          req.Name,
			IntervalWeeks: req.IntervalWeeks,
			StartDate:     start,
			DriverID:      req.DriverID,
			VehicleID:     req.VehicleID,
			RouteType:     req.RouteType,
			ScheduleIDs:   req.ScheduleIDs,
			ActorID:       t.UserID,
		}
		if !end.IsZero() {
			in.EndDate = &end
		}

		series, err := h.deps.Services.Series.CreateSeries(r.Context(), in)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Series created", series, http.StatusCreated)
	}
}

// MaterializeSeries handles POST /api/v1/series/{seriesID}/materialize
func (h *Handlers) MaterializeSeries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req materializeRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}
		from, err := requireDay(req.From, "from")
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		to, err := requireDay(req.To, "to")
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}

		result, err := h.deps.Services.Series.Materialize(r.Context(), tenant(r).CompanyID, seriesIDParam(r), from, to)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Series materialized", result)
	}
}

// AddSeriesChild handles POST /api/v1/series/{seriesID}/children
func (h *Handlers) AddSeriesChild() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req seriesChildRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}
		from, err := h.effectiveDay(req.EffectiveFrom)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}

		t := tenant(r)
		result, err := h.deps.Services.Series.AddChild(r.Context(), t.CompanyID, seriesIDParam(r), req.ScheduleID, from, t.UserID)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Child added to series", result)
	}
}

// RemoveSeriesChild handles DELETE /api/v1/series/{seriesID}/children/{scheduleID}?effective_from=
func (h *Handlers) RemoveSeriesChild() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		from, err := h.effectiveDay(r.URL.Query().Get("effective_from"))
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}

		t := tenant(r)
		result, err := h.deps.Services.Series.RemoveChild(r.Context(), t.CompanyID, seriesIDParam(r), scheduleIDParam(r), from, t.UserID)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Child removed from series", result)
	}
}

// ReassignSeriesDriver handles PUT /api/v1/series/{seriesID}/driver
func (h *Handlers) ReassignSeriesDriver() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req seriesDriverRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}
		if req.DriverID == "" {
			respondBadRequest(w, initTime, constants.ErrCodeDriverRequired, constants.GetRouteErrorMessage(constants.ErrCodeDriverRequired))
			return
		}
		from, err := h.effectiveDay(req.EffectiveFrom)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}

		t := tenant(r)
		result, err := h.deps.Services.Series.ReassignDriver(r.Context(), t.CompanyID, seriesIDParam(r), req.DriverID, from, t.UserID, req.Reason)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Series driver reassigned", result)
	}
}

// PauseSeries handles POST /api/v1/series/{seriesID}/pause
func (h *Handlers) PauseSeries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		series, err := h.deps.Services.Series.PauseSeries(r.Context(), tenant(r).CompanyID, seriesIDParam(r))
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Series paused", series)
	}
}

// ResumeSeries handles POST /api/v1/series/{seriesID}/resume
func (h *Handlers) ResumeSeries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		series, err := h.deps.Services.Series.ResumeSeries(r.Context(), tenant(r).CompanyID, seriesIDParam(r))
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Series resumed", series)
	}
}

// CancelSeries handles POST /api/v1/series/{seriesID}/cancel
func (h *Handlers) CancelSeries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req cancelSeriesRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}

		t := tenant(r)
		result, err := h.deps.Services.Series.CancelSeries(r.Context(), t.CompanyID, seriesIDParam(r), req.CancelFutureRoutes, t.UserID, req.Reason)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Series cancelled", result)
	}
}
