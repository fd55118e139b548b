package api

import (
	"net/http"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/models"
	"caretransport/dispatch/internal/services"

	"github.com/go-chi/chi/v5"
)

type stopRequest struct {
	ScheduleID    models.ScheduleID  `json:"schedule_id"`
	StopType      constants.StopType `json:"stop_type"`
	EstimatedTime models.TimeOfDay   `json:"estimated_time"`
}

type createRouteRequest struct {
	Date        string              `json:"date"`
	DriverID    *models.DriverID    `json:"driver_id"`
	VehicleID   models.VehicleID    `json:"vehicle_id"`
	Name        string              `json:"name"`
	RouteType   constants.RouteType `json:"route_type"`
	ScheduleIDs []models.ScheduleID `json:"schedule_ids"`
	Stops       []stopRequest       `json:"stops"`
}

type transitionRequest struct {
	At     *time.Time `json:"at"`
	Reason string     `json:"reason"`
}

type assignDriverRequest struct {
	DriverID models.DriverID `json:"driver_id"`
	Reason   string          `json:"reason"`
}

func routeIDParam(r *http.Request) models.RouteID {
	return models.RouteID(chi.URLParam(r, "routeID"))
}

// CreateRoute handles POST /api/v1/routes
func (h *Handlers) CreateRoute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req createRouteRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}
		day, err := requireDay(req.Date, "date")
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}

		t := tenant(r)
		in := services.CreateRouteInput{
			CompanyID:   t.CompanyID,
			Date:        day,
			DriverID:    req.DriverID,
			VehicleID:   req.VehicleID,
			Name:        req.Name,
			RouteType:   req.RouteType,
			ScheduleIDs: req.ScheduleIDs,
			ActorID:     t.UserID,
		}
		for _, s := range req.Stops {
			in.Stops = append(in.Stops, services.StopInput{
				ScheduleID:    s.ScheduleID,
				StopType:      s.StopType,
				EstimatedTime: s.EstimatedTime,
			})
		}

		detail, err := h.deps.Services.Routes.CreateRoute(r.Context(), in)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Route created", detail, http.StatusCreated)
	}
}

// ListRoutes handles GET /api/v1/routes?from=&to=&status=&driver_id=&series_id=&limit=
func (h *Handlers) ListRoutes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		q := r.URL.Query()

		var filter repositories.RouteFilter
		from, err := parseDayParam(q.Get("from"))
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		to, err := parseDayParam(q.Get("to"))
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		if !from.IsZero() {
			filter.From = &from
		}
		if !to.IsZero() {
			filter.To = &to
		}
		for _, s := range common.SplitIDs(q.Get("status")) {
			filter.Statuses = append(filter.Statuses, constants.RouteStatus(s))
		}
		if v := q.Get("driver_id"); v != "" {
			filter.DriverID = models.DriverPtr(models.DriverID(v))
		}
		if v := q.Get("series_id"); v != "" {
			id := models.SeriesID(v)
			filter.SeriesID = &id
		}
		filter.Limit = parseLimit(q.Get("limit"))

		items, err := h.deps.Services.Routes.ListRoutes(r.Context(), tenant(r).CompanyID, filter)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Routes fetched", items)
	}
}

// GetRoute handles GET /api/v1/routes/{routeID}
func (h *Handlers) GetRoute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		detail, err := h.deps.Services.Routes.GetRoute(r.Context(), tenant(r).CompanyID, routeIDParam(r))
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Route fetched", detail)
	}
}

// TransitionRoute handles POST /api/v1/routes/{routeID}/{start|complete|cancel}
func (h *Handlers) TransitionRoute(target constants.RouteStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req transitionRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}

		t := tenant(r)
		svc := h.deps.Services.Routes
		var err error
		switch target {
		case constants.RouteStatusInProgress:
			_, err = svc.StartRoute(r.Context(), t.CompanyID, routeIDParam(r), req.At, t.UserID)
		case constants.RouteStatusCompleted:
			_, err = svc.CompleteRoute(r.Context(), t.CompanyID, routeIDParam(r), req.At, t.UserID)
		default:
			_, err = svc.CancelRoute(r.Context(), t.CompanyID, routeIDParam(r), req.Reason, t.UserID)
		}
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}

		detail, err := svc.GetRoute(r.Context(), t.CompanyID, routeIDParam(r))
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Route is now "+string(detail.Route.Status), detail)
	}
}

// AssignDriver handles PUT /api/v1/routes/{routeID}/driver
func (h *Handlers) AssignDriver() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req assignDriverRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}
		if req.DriverID == "" {
			respondBadRequest(w, initTime, constants.ErrCodeDriverRequired, constants.GetRouteErrorMessage(constants.ErrCodeDriverRequired))
			return
		}

		t := tenant(r)
		route, err := h.deps.Services.Routes.AssignDriver(r.Context(), t.CompanyID, routeIDParam(r), req.DriverID, t.UserID, req.Reason)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Driver assigned", route)
	}
}

// MarkDriverMissing handles POST /api/v1/routes/{routeID}/driver-missing
func (h *Handlers) MarkDriverMissing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		var req transitionRequest
		if err := decodeBody(r, &req); err != nil {
			respondBadRequest(w, initTime, constants.ErrCodeInvalidBody, err.Error())
			return
		}

		t := tenant(r)
		route, changed, err := h.deps.Services.Routes.MarkDriverMissing(r.Context(), t.CompanyID, routeIDParam(r), nil, t.UserID, req.Reason)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		message := "Route marked driver missing"
		if !changed {
			message = "Route was already driver missing"
		}
		common.RespondSuccess(w, initTime, message, route)
	}
}

// DriverHistory handles GET /api/v1/routes/{routeID}/driver-history
func (h *Handlers) DriverHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		history, err := h.deps.Services.Routes.DriverHistory(r.Context(), tenant(r).CompanyID, routeIDParam(r))
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Driver history fetched", history)
	}
}

// RebalanceRoute handles POST /api/v1/routes/{routeID}/rebalance
func (h *Handlers) RebalanceRoute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		moved, err := h.deps.Services.Stops.RebalanceRoute(r.Context(), tenant(r).CompanyID, routeIDParam(r), false)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Route rebalanced", map[string]int{"stops_moved": moved})
	}
}

// DaySummary handles GET /api/v1/days/{date}/summary
func (h *Handlers) DaySummary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		day, err := requireDay(chi.URLParam(r, "date"), "date")
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		summary, err := h.deps.Services.Routes.DaySummary(r.Context(), tenant(r).CompanyID, day)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Day summary fetched", summary)
	}
}
