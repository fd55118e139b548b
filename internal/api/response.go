package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	reqctx "caretransport/dispatch/internal/context"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/models"
	"caretransport/dispatch/internal/providers"
	"caretransport/dispatch/internal/routing"
)

// respondServiceError maps engine errors to HTTP responses
func respondServiceError(w http.ResponseWriter, r *http.Request, initTime time.Time, err error) {
	var routeErr *routing.Error
	if errors.As(err, &routeErr) {
		common.RespondError(w, initTime, routeErr.Code, routeErr.Message, statusForKind(routeErr.Kind))
		return
	}

	var providerErr *providers.ProviderError
	if errors.As(err, &providerErr) {
		common.RespondError(w, initTime, providerErr.Code, providerErr.Message, http.StatusBadGateway)
		return
	}

	logging.Error("Request failed",
		"request_id", reqctx.GetRequestID(r.Context()),
		"path", r.URL.Path,
		"error", err)
	common.RespondError(w, initTime, constants.ErrCodeInternal, constants.GetRouteErrorMessage(constants.ErrCodeInternal), http.StatusInternalServerError)
}

// statusForKind maps error kinds to HTTP status codes
func statusForKind(kind routing.Kind) int {
	switch kind {
	case routing.KindNotFound:
		return http.StatusNotFound
	case routing.KindInvalidState:
		return http.StatusConflict
	case routing.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondBadRequest(w http.ResponseWriter, initTime time.Time, code string, message string) {
	common.RespondError(w, initTime, code, message, http.StatusBadRequest)
}

// decodeBody parses a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func tenant(r *http.Request) reqctx.Tenant {
	t, _ := reqctx.GetTenant(r.Context())
	return t
}

// parseDayParam reads a YYYY-MM-DD value; empty returns the zero time
func parseDayParam(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	d, err := models.ParseDay(raw)
	if err != nil {
		return time.Time{}, routing.Validation(constants.ErrCodeInvalidDateRange, err.Error())
	}
	return d, nil
}

// requireDay is parseDayParam for mandatory values
func requireDay(raw string, field string) (time.Time, error) {
	d, err := parseDayParam(raw)
	if err != nil {
		return d, err
	}
	if d.IsZero() {
		return d, routing.Validation(constants.ErrCodeInvalidDateRange, field+" is required")
	}
	return d, nil
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
