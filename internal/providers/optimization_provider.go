package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"

	"golang.org/x/time/rate"
)

// OptimizationProvider is the external vehicle routing solver. The engine
// only submits problems and fetches raw solutions.
type OptimizationProvider interface {
	Submit(ctx context.Context, req *OptimizationRequest) (string, error)
	Result(ctx context.Context, providerTaskID string) (*OptimizationResult, error)
}

// Location is a point with an optional time window (HH:MM)
type Location struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	TimeWindow  []string `json:"time_window,omitempty"`
	ServiceSecs int      `json:"service_secs,omitempty"`
}

// Shipment is one child's pickup to dropoff. ID is the provider-local
// schedule id and ChildID the provider-local child id.
type Shipment struct {
	ID       string   `json:"id"`
	ChildID  string   `json:"child_id"`
	Pickup   Location `json:"pickup"`
	Delivery Location `json:"delivery"`
	Amount   int      `json:"amount"`
}

// Agent is one driver/vehicle pair. IDs are provider-local.
type Agent struct {
	DriverID  string `json:"driver_id"`
	VehicleID string `json:"vehicle_id"`
	Capacity  int    `json:"capacity"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// OptimizationRequest is the problem sent to the solver
type OptimizationRequest struct {
	Date      string     `json:"date"`
	Shipments []Shipment `json:"shipments"`
	Agents    []Agent    `json:"agents"`
}

// LatLng is a solved position
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SolutionChild is one child's pickup and dropoff in a solved route.
// Times are HH:MM on the task date.
type SolutionChild struct {
	ChildID       string  `json:"childId"`
	ScheduleID    string  `json:"scheduleId"`
	PickupOrder   int     `json:"pickupOrder"`
	PickupTime    string  `json:"pickupTime"`
	DropoffTime   string  `json:"dropoffTime"`
	PickupLatLng  *LatLng `json:"pickupLatLng,omitempty"`
	DropoffLatLng *LatLng `json:"dropoffLatLng,omitempty"`
}

// SolutionRoute is the solved route of one vehicle. TotalDistance is in
// meters and TotalTime in seconds. EstimatedStart and EstimatedEnd are
// RFC 3339 timestamps or HH:MM on the task date.
type SolutionRoute struct {
	VehicleID      string          `json:"vehicleId"`
	DriverID       string          `json:"driverId"`
	Children       []SolutionChild `json:"children"`
	TotalDistance  float64         `json:"totalDistance"`
	TotalTime      int             `json:"totalTime"`
	EstimatedStart string          `json:"estimatedStart"`
	EstimatedEnd   string          `json:"estimatedEnd"`
}

// Solution is the decoded solver output. All ids are provider-local.
type Solution struct {
	Routes             []SolutionRoute `json:"routes"`
	UnassignedChildren []string        `json:"unassignedChildren"`
}

// OptimizationResult is a poll answer. Raw holds the solution document as
// returned, so it can be stored and decoded later.
type OptimizationResult struct {
	Status string          `json:"status"` // pending, completed or failed
	Error  string          `json:"error,omitempty"`
	Raw    json.RawMessage `json:"solution,omitempty"`
}

const (
	ProviderStatusPending   = "pending"
	ProviderStatusCompleted = "completed"
	ProviderStatusFailed    = "failed"
)

// DecodeSolution parses a stored raw solution
func DecodeSolution(raw string) (*Solution, error) {
	var sol Solution
	if err := json.Unmarshal([]byte(raw), &sol); err != nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Failed to decode solution",
			Details: raw,
			Err:     err,
		}
	}
	return &sol, nil
}

// HTTPOptimizationProvider talks to the solver's REST API
type HTTPOptimizationProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPOptimizationProvider creates a provider throttled to rps requests
// per second
func NewHTTPOptimizationProvider(baseURL, apiKey string, rps float64, burst int, timeout time.Duration) *HTTPOptimizationProvider {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPOptimizationProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

// Submit posts a problem and returns the solver's task id
func (p *HTTPOptimizationProvider) Submit(ctx context.Context, req *OptimizationRequest) (string, error) {
	if req == nil || len(req.Shipments) == 0 {
		return "", &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Nothing to optimize",
		}
	}
	if len(req.Agents) == 0 {
		return "", &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "No agents available",
		}
	}

	var resp submitResponse
	if err := p.do(ctx, http.MethodPost, "/optimizations", req, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Solver returned no task id",
		}
	}
	return resp.TaskID, nil
}

// Result polls the solver for a task
func (p *HTTPOptimizationProvider) Result(ctx context.Context, providerTaskID string) (*OptimizationResult, error) {
	if providerTaskID == "" {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Task id cannot be empty",
		}
	}
	var result OptimizationResult
	if err := p.do(ctx, http.MethodGet, "/optimizations/"+providerTaskID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do performs an authenticated JSON request
func (p *HTTPOptimizationProvider) do(ctx context.Context, method, endpoint string, payload interface{}, result interface{}) error {
	if p.APIKey == "" {
		return &ProviderError{
			Code:    constants.ErrCodeInvalidAPIKey,
			Message: "OPTIMIZER_API_KEY is not set",
		}
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return &ProviderError{
				Code:    constants.ErrCodeRateLimited,
				Message: constants.GetErrorMessage(constants.ErrCodeRateLimited),
				Err:     err,
			}
		}
	}

	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return &ProviderError{
				Code:    constants.ErrCodeInvalidDataFormat,
				Message: "Failed to marshal request body",
				Err:     err,
			}
		}
		body = bytes.NewReader(payloadBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+endpoint, body)
	if err != nil {
		return &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: "Failed to create request",
			Err:     err,
		}
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	common.LogHTTPRequest(req)

	resp, err := p.Client.Do(req)
	if err != nil {
		return &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: constants.GetErrorMessage(constants.ErrCodeNetworkError),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: "Failed to read response body",
			Err:     err,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return buildHTTPError(resp.StatusCode, endpoint, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, result); err != nil {
		return &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Failed to decode response",
			Details: string(bodyBytes),
			Err:     err,
		}
	}
	return nil
}

// buildHTTPError maps a status code to a ProviderError
func buildHTTPError(statusCode int, endpoint string, body string) error {
	code := constants.ErrCodeNetworkError
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		code = constants.ErrCodeInvalidAPIKey
	case statusCode == http.StatusNotFound:
		code = constants.ErrCodeProviderTaskNotFound
	case statusCode == http.StatusTooManyRequests:
		code = constants.ErrCodeRateLimited
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		code = constants.ErrCodeProviderRejected
	case statusCode >= 500:
		code = constants.ErrCodeProviderUnavailable
	}
	return &ProviderError{
		Code:       code,
		Message:    fmt.Sprintf("%s (HTTP %d on %s)", constants.GetErrorMessage(code), statusCode, endpoint),
		Details:    body,
		StatusCode: statusCode,
	}
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Code       string
	Message    string
	Details    string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
