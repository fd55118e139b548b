package routing

import (
	"testing"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executionFixture(status constants.RouteStatus) (*gormModels.Route, *gormModels.RouteStop) {
	route := routeIn(status)
	stop := &gormModels.RouteStop{
		ID:            "stop-1",
		RouteID:       route.ID,
		StopOrder:     7,
		EstimatedTime: "07:30",
	}
	return route, stop
}

func TestExecuteStop_DerivesOutcome(t *testing.T) {
	route, stop := executionFixture(constants.RouteStatusInProgress)
	actual := time.Date(2025, 6, 10, 7, 42, 0, 0, time.UTC)

	err := ExecuteStop(route, stop, Execution{ActualTime: actual, ExecutedBy: "user-1"}, DefaultExecutionTolerance)
	require.NoError(t, err)
	assert.Equal(t, constants.StopOutcomeLate, *stop.Outcome)
	assert.Equal(t, models.UserID("user-1"), *stop.ExecutedBy)
	assert.Equal(t, 7, stop.StopOrder)
}

func TestExecuteStop_Rejections(t *testing.T) {
	actual := time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC)

	route, stop := executionFixture(constants.RouteStatusPlanned)
	assert.True(t, IsInvalidState(ExecuteStop(route, stop, Execution{ActualTime: actual}, 0)))

	route, stop = executionFixture(constants.RouteStatusInProgress)
	stop.IsCancelled = true
	assert.ErrorIs(t, ExecuteStop(route, stop, Execution{ActualTime: actual}, 0), ErrCannotExecuteCancelledStop)

	route, stop = executionFixture(constants.RouteStatusInProgress)
	require.NoError(t, ExecuteStop(route, stop, Execution{ActualTime: actual}, 0))
	assert.ErrorIs(t, ExecuteStop(route, stop, Execution{ActualTime: actual}, 0), ErrStopAlreadyExecuted)

	route, stop = executionFixture(constants.RouteStatusInProgress)
	stop.RouteID = "other"
	assert.True(t, IsValidation(ExecuteStop(route, stop, Execution{ActualTime: actual}, 0)))

	route, stop = executionFixture(constants.RouteStatusInProgress)
	assert.True(t, IsValidation(ExecuteStop(route, stop, Execution{ActualTime: actual, Outcome: "TELEPORTED"}, 0)))
}

func TestDeriveOutcome(t *testing.T) {
	day := models.MustDay("2025-06-10")
	at := func(h, m int) time.Time { return time.Date(2025, 6, 10, h, m, 0, 0, time.UTC) }

	assert.Equal(t, constants.StopOutcomeOnTime, DeriveOutcome(day, "07:30", at(7, 33), 5*time.Minute))
	assert.Equal(t, constants.StopOutcomeLate, DeriveOutcome(day, "07:30", at(7, 36), 5*time.Minute))
	assert.Equal(t, constants.StopOutcomeEarly, DeriveOutcome(day, "07:30", at(7, 20), 5*time.Minute))
}

func TestDelay_UsesLatestExecutedStop(t *testing.T) {
	route := routeIn(constants.RouteStatusInProgress)
	late := constants.StopOutcomeLate
	onTime := constants.StopOutcomeOnTime
	t1 := time.Date(2025, 6, 10, 7, 1, 0, 0, time.UTC)
	t2 := time.Date(2025, 6, 10, 7, 35, 0, 0, time.UTC)
	stops := []*gormModels.RouteStop{
		{ID: "a", EstimatedTime: "07:00", Outcome: &onTime, ActualTime: &t1},
		{ID: "b", EstimatedTime: "07:20", Outcome: &late, ActualTime: &t2},
		{ID: "c", EstimatedTime: "07:40"},
	}

	delay, last, ok := Delay(route, stops)
	require.True(t, ok)
	assert.Equal(t, models.StopID("b"), last.ID)
	assert.Equal(t, 15*time.Minute, delay)

	_, _, ok = Delay(route, stops[2:])
	assert.False(t, ok)
}
