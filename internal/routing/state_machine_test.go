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

var allStatuses = []constants.RouteStatus{
	constants.RouteStatusPlanned,
	constants.RouteStatusInProgress,
	constants.RouteStatusCompleted,
	constants.RouteStatusCancelled,
	constants.RouteStatusDriverMissing,
}

func routeIn(status constants.RouteStatus) *gormModels.Route {
	r := &gormModels.Route{
		ID:     "route-1",
		Date:   models.MustDay("2025-06-10"),
		Status: status,
	}
	if status != constants.RouteStatusDriverMissing {
		r.DriverID = models.DriverPtr("driver-1")
	}
	return r
}

func TestStart_OnlyFromPlanned(t *testing.T) {
	now := time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC)
	for _, status := range allStatuses {
		r := routeIn(status)
		err := Start(r, now)
		if status == constants.RouteStatusPlanned {
			require.NoError(t, err)
			assert.Equal(t, constants.RouteStatusInProgress, r.Status)
			require.NotNil(t, r.ActualStart)
			assert.Equal(t, now, *r.ActualStart)
			continue
		}
		assert.True(t, IsInvalidState(err), "start from %s should fail", status)
		assert.Equal(t, status, r.Status)
	}
}

func TestStart_RequiresTimestamp(t *testing.T) {
	r := routeIn(constants.RouteStatusPlanned)
	err := Start(r, time.Time{})
	assert.True(t, IsValidation(err))
	assert.Equal(t, constants.RouteStatusPlanned, r.Status)
}

func TestComplete_OnlyFromInProgress(t *testing.T) {
	end := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	for _, status := range allStatuses {
		r := routeIn(status)
		err := Complete(r, end)
		if status == constants.RouteStatusInProgress {
			require.NoError(t, err)
			assert.Equal(t, constants.RouteStatusCompleted, r.Status)
			continue
		}
		assert.True(t, IsInvalidState(err), "complete from %s should fail", status)
	}
}

func TestComplete_EndBeforeStart(t *testing.T) {
	r := routeIn(constants.RouteStatusPlanned)
	start := time.Date(2025, 6, 10, 7, 0, 0, 0, time.UTC)
	require.NoError(t, Start(r, start))

	err := Complete(r, start.Add(-time.Minute))
	assert.True(t, IsValidation(err))
	assert.Equal(t, constants.RouteStatusInProgress, r.Status)
}

func TestCancel(t *testing.T) {
	cases := map[constants.RouteStatus]bool{
		constants.RouteStatusPlanned:       true,
		constants.RouteStatusInProgress:    true,
		constants.RouteStatusDriverMissing: true,
		constants.RouteStatusCompleted:     false,
		constants.RouteStatusCancelled:     false,
	}
	for status, ok := range cases {
		r := routeIn(status)
		err := Cancel(r, "school closed")
		if ok {
			require.NoError(t, err, status)
			assert.Equal(t, constants.RouteStatusCancelled, r.Status)
			require.NotNil(t, r.CancellationReason)
		} else {
			assert.True(t, IsInvalidState(err), status)
		}
	}
}

func TestMarkDriverMissing_ClearsDriver(t *testing.T) {
	r := routeIn(constants.RouteStatusPlanned)
	absence := models.AbsenceID("absence-1")

	changed, err := MarkDriverMissing(r, &absence)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, constants.RouteStatusDriverMissing, r.Status)
	assert.Nil(t, r.DriverID)
	require.NotNil(t, r.PreviousDriverID)
	assert.Equal(t, models.DriverID("driver-1"), *r.PreviousDriverID)
	assert.Equal(t, absence, *r.DriverMissingAbsenceID)

	changed, err = MarkDriverMissing(r, &absence)
	require.NoError(t, err)
	assert.False(t, changed, "second call must be a no-op")
	assert.Equal(t, models.DriverID("driver-1"), *r.PreviousDriverID)
}

func TestMarkDriverMissing_RejectedOutsidePlanned(t *testing.T) {
	for _, status := range []constants.RouteStatus{
		constants.RouteStatusInProgress,
		constants.RouteStatusCompleted,
		constants.RouteStatusCancelled,
	} {
		_, err := MarkDriverMissing(routeIn(status), nil)
		assert.True(t, IsInvalidState(err), status)
	}
}

func TestAssignDriver_ExitsDriverMissing(t *testing.T) {
	r := routeIn(constants.RouteStatusPlanned)
	_, err := MarkDriverMissing(r, nil)
	require.NoError(t, err)

	prev, err := AssignDriver(r, "driver-2")
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.Equal(t, constants.RouteStatusPlanned, r.Status)
	assert.Equal(t, models.DriverID("driver-2"), *r.DriverID)
	assert.Nil(t, r.DriverMissingAbsenceID)
}

func TestAssignDriver_Rejections(t *testing.T) {
	_, err := AssignDriver(routeIn(constants.RouteStatusPlanned), "")
	assert.True(t, IsValidation(err))

	for _, status := range []constants.RouteStatus{
		constants.RouteStatusInProgress,
		constants.RouteStatusCompleted,
		constants.RouteStatusCancelled,
	} {
		_, err := AssignDriver(routeIn(status), "driver-2")
		assert.True(t, IsInvalidState(err), status)
	}
}

func TestStopGuards(t *testing.T) {
	type guard struct {
		name    string
		fn      func(*gormModels.Route) error
		allowed []constants.RouteStatus
	}
	guards := []guard{
		{"mutate", EnsureStopsMutable, []constants.RouteStatus{constants.RouteStatusPlanned}},
		{"detail", EnsureStopDetailEditable, []constants.RouteStatus{constants.RouteStatusPlanned, constants.RouteStatusInProgress}},
		{"cancel", EnsureStopCancellable, []constants.RouteStatus{constants.RouteStatusPlanned, constants.RouteStatusInProgress, constants.RouteStatusDriverMissing}},
		{"execute", EnsureStopsExecutable, []constants.RouteStatus{constants.RouteStatusInProgress}},
	}
	for _, g := range guards {
		for _, status := range allStatuses {
			err := g.fn(routeIn(status))
			if contains(g.allowed, status) {
				assert.NoError(t, err, "%s in %s", g.name, status)
			} else {
				assert.True(t, IsInvalidState(err), "%s in %s", g.name, status)
			}
		}
	}
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	for _, from := range []constants.RouteStatus{constants.RouteStatusCompleted, constants.RouteStatusCancelled} {
		for _, to := range allStatuses {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func contains(list []constants.RouteStatus, s constants.RouteStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
