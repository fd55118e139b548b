package api

import (
	"context"
	"net/http"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/models"
	"caretransport/dispatch/internal/services"

	"github.com/go-chi/chi/v5"
)

type absenceHandlerFunc func(ctx context.Context, companyID models.CompanyID, absenceID models.AbsenceID) (*services.RouteSyncResult, error)

// absenceTrigger serves the absence lifecycle hooks. The absence itself is
// owned by the collaborator directory; these endpoints only react to it.
func (h *Handlers) absenceTrigger(message string, fn absenceHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		absenceID := models.AbsenceID(chi.URLParam(r, "absenceID"))
		result, err := fn(r.Context(), tenant(r).CompanyID, absenceID)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, message, result)
	}
}

// DriverAbsenceCreated handles POST /api/v1/absences/drivers/{absenceID}/created
func (h *Handlers) DriverAbsenceCreated() http.HandlerFunc {
	return h.absenceTrigger("Driver absence applied", h.deps.Services.Sync.HandleDriverAbsenceCreated)
}

// DriverAbsenceCancelled handles POST /api/v1/absences/drivers/{absenceID}/cancelled
func (h *Handlers) DriverAbsenceCancelled() http.HandlerFunc {
	return h.absenceTrigger("Driver absence cancellation processed", h.deps.Services.Sync.HandleDriverAbsenceCancelled)
}

// ChildAbsenceCreated handles POST /api/v1/absences/children/{absenceID}/created
func (h *Handlers) ChildAbsenceCreated() http.HandlerFunc {
	return h.absenceTrigger("Child absence applied", h.deps.Services.Sync.HandleChildAbsenceCreated)
}

// ChildAbsenceCancelled handles POST /api/v1/absences/children/{absenceID}/cancelled
func (h *Handlers) ChildAbsenceCancelled() http.HandlerFunc {
	return h.absenceTrigger("Child absence cancellation processed", h.deps.Services.Sync.HandleChildAbsenceCancelled)
}

// DriverAvailability handles GET /api/v1/drivers/{driverID}/availability?date=
func (h *Handlers) DriverAvailability() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initTime := time.Now()
		day, err := requireDay(r.URL.Query().Get("date"), "date")
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		driverID := models.DriverID(chi.URLParam(r, "driverID"))
		availability, err := h.deps.Services.Availability.Check(r.Context(), tenant(r).CompanyID, driverID, day)
		if err != nil {
			respondServiceError(w, r, initTime, err)
			return
		}
		common.RespondSuccess(w, initTime, "Availability fetched", availability)
	}
}
