package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"caretransport/dispatch/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(url string) *HTTPOptimizationProvider {
	return NewHTTPOptimizationProvider(url, "test-key", 0, 1, 5*time.Second)
}

func sampleRequest() *OptimizationRequest {
	return &OptimizationRequest{
		Date: "2026-03-02",
		Shipments: []Shipment{{
			ID:       "schedule-1",
			ChildID:  "child-1",
			Pickup:   Location{Lat: 52.1, Lng: 4.3, TimeWindow: []string{"07:30", "07:45"}},
			Delivery: Location{Lat: 52.2, Lng: 4.4},
			Amount:   1,
		}},
		Agents: []Agent{{DriverID: "driver-1", VehicleID: "vehicle-1", Capacity: 8, Start: "07:00", End: "09:00"}},
	}
}

func TestOptimizationProvider_Submit_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/optimizations", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body OptimizationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Shipments, 1)
		assert.Equal(t, "driver-1", body.Agents[0].DriverID)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"task_id": "task-42"})
	}))
	defer server.Close()

	taskID, err := newTestProvider(server.URL).Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "task-42", taskID)
}

func TestOptimizationProvider_Submit_RejectsEmptyProblem(t *testing.T) {
	p := newTestProvider("http://unused")

	_, err := p.Submit(context.Background(), &OptimizationRequest{})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, constants.ErrCodeInvalidDataFormat, perr.Code)

	req := sampleRequest()
	req.Agents = nil
	_, err = p.Submit(context.Background(), req)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, constants.ErrCodeInvalidDataFormat, perr.Code)
}

func TestOptimizationProvider_MissingAPIKey(t *testing.T) {
	p := NewHTTPOptimizationProvider("http://unused", "", 0, 1, time.Second)

	_, err := p.Submit(context.Background(), sampleRequest())
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, constants.ErrCodeInvalidAPIKey, perr.Code)
}

func TestOptimizationProvider_Result(t *testing.T) {
	solution := `{"routes":[{"vehicleId":"vehicle-1","driverId":"driver-1","children":[{"childId":"child-1","scheduleId":"schedule-1","pickupOrder":1,"pickupTime":"07:35","dropoffTime":"08:00","pickupLatLng":{"lat":52.1,"lng":4.3}}],"totalDistance":8200.5,"totalTime":1500,"estimatedStart":"07:30","estimatedEnd":"08:05"}],"unassignedChildren":["child-2"]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/optimizations/task-42", r.URL.Path)
		w.Write([]byte(`{"status":"completed","solution":` + solution + `}`))
	}))
	defer server.Close()

	result, err := newTestProvider(server.URL).Result(context.Background(), "task-42")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatusCompleted, result.Status)

	sol, err := DecodeSolution(string(result.Raw))
	require.NoError(t, err)
	require.Len(t, sol.Routes, 1)
	route := sol.Routes[0]
	assert.Equal(t, "vehicle-1", route.VehicleID)
	assert.Equal(t, "driver-1", route.DriverID)
	assert.Equal(t, 8200.5, route.TotalDistance)
	assert.Equal(t, 1500, route.TotalTime)
	assert.Equal(t, "07:30", route.EstimatedStart)
	require.Len(t, route.Children, 1)
	assert.Equal(t, 1, route.Children[0].PickupOrder)
	require.NotNil(t, route.Children[0].PickupLatLng)
	assert.Equal(t, 52.1, route.Children[0].PickupLatLng.Lat)
	assert.Nil(t, route.Children[0].DropoffLatLng)
	assert.Equal(t, []string{"child-2"}, sol.UnassignedChildren)
}

func TestOptimizationProvider_HTTPErrors(t *testing.T) {
	cases := []struct {
		status int
		code   string
	}{
		{http.StatusUnauthorized, constants.ErrCodeInvalidAPIKey},
		{http.StatusNotFound, constants.ErrCodeProviderTaskNotFound},
		{http.StatusTooManyRequests, constants.ErrCodeRateLimited},
		{http.StatusUnprocessableEntity, constants.ErrCodeProviderRejected},
		{http.StatusBadGateway, constants.ErrCodeProviderUnavailable},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"message":"nope"}`))
			}))
			defer server.Close()

			_, err := newTestProvider(server.URL).Result(context.Background(), "task-1")
			var perr *ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tc.code, perr.Code)
			assert.Equal(t, tc.status, perr.StatusCode)
			assert.Contains(t, perr.Details, "nope")
		})
	}
}

func TestOptimizationProvider_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Result(context.Background(), "task-1")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, constants.ErrCodeInvalidDataFormat, perr.Code)
}

func TestDecodeSolution_Invalid(t *testing.T) {
	_, err := DecodeSolution("{")
	assert.Error(t, err)
}
