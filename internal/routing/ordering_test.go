package routing

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopsWithOrders(orders ...int) []*gormModels.RouteStop {
	stops := make([]*gormModels.RouteStop, len(orders))
	for i, o := range orders {
		stops[i] = &gormModels.RouteStop{
			ID:        models.StopID(fmt.Sprintf("stop-%d", i+1)),
			RouteID:   "route-1",
			StopOrder: o,
			StopType:  constants.StopTypePickup,
		}
	}
	return stops
}

func ids(stops []*gormModels.RouteStop) []models.StopID {
	out := make([]models.StopID, len(stops))
	for i, s := range stops {
		out[i] = s.ID
	}
	return out
}

func orders(stops []*gormModels.RouteStop) []int {
	out := make([]int, len(stops))
	for i, s := range stops {
		out[i] = s.StopOrder
	}
	return out
}

func TestInsertAt_ShiftsOnCollision(t *testing.T) {
	active := stopsWithOrders(1, 2, 3, 4)
	newStop := &gormModels.RouteStop{ID: "new"}

	shifted, result, err := InsertAt(active, 2, newStop)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, orders(result))
	assert.Equal(t, []models.StopID{"stop-1", "new", "stop-2", "stop-3", "stop-4"}, ids(result))
	assert.Equal(t, []models.StopID{"stop-2", "stop-3", "stop-4"}, ids(shifted))
	assert.NoError(t, ValidateUniqueOrders(result))
}

func TestInsertAt_NoShiftWhenFree(t *testing.T) {
	active := stopsWithOrders(10, 20, 30)
	shifted, result, err := InsertAt(active, 15, &gormModels.RouteStop{ID: "new"})
	require.NoError(t, err)

	assert.Empty(t, shifted)
	assert.Equal(t, []int{10, 15, 20, 30}, orders(result))
}

func TestInsertAt_RejectsNonPositive(t *testing.T) {
	_, _, err := InsertAt(stopsWithOrders(1), 0, &gormModels.RouteStop{ID: "new"})
	assert.True(t, IsValidation(err))
}

func TestReorder_AssignsDenseValues(t *testing.T) {
	active := stopsWithOrders(10, 20, 30)
	changed, err := Reorder(active, []models.StopID{"stop-3", "stop-1", "stop-2"})
	require.NoError(t, err)
	assert.Len(t, changed, 3)

	SortByOrder(active)
	assert.Equal(t, []models.StopID{"stop-3", "stop-1", "stop-2"}, ids(active))
	assert.Equal(t, []int{1, 2, 3}, orders(active))
}

func TestReorder_RejectsMismatchedSets(t *testing.T) {
	cases := map[string][]models.StopID{
		"missing":   {"stop-1", "stop-2"},
		"extra":     {"stop-1", "stop-2", "stop-3", "stop-4"},
		"foreign":   {"stop-1", "stop-2", "other"},
		"duplicate": {"stop-1", "stop-1", "stop-2"},
	}
	for name, list := range cases {
		active := stopsWithOrders(1, 2, 3)
		_, err := Reorder(active, list)
		assert.ErrorIs(t, err, ErrReorderSetMismatch, name)
		assert.Equal(t, []int{1, 2, 3}, orders(active), "%s must not modify stops", name)
	}
}

func TestNeedsRebalancing(t *testing.T) {
	policy := OrderPolicy{Spacing: 10, MinGap: 2}

	assert.False(t, policy.NeedsRebalancing(stopsWithOrders(10, 20, 30)))
	assert.True(t, policy.NeedsRebalancing(stopsWithOrders(10, 11, 30)))
	assert.True(t, DefaultOrderPolicy().NeedsRebalancing(stopsWithOrders(1, 2, 2)))
	assert.False(t, DefaultOrderPolicy().NeedsRebalancing(stopsWithOrders(1, 2, 3)))
	assert.False(t, policy.NeedsRebalancing(stopsWithOrders(5)))
}

func TestRebalance_PreservesRelativeOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	policy := DefaultOrderPolicy()

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(12) + 1
		values := make([]int, n)
		for i := range values {
			values[i] = rng.Intn(20) + 1
		}
		active := stopsWithOrders(values...)
		for i, s := range active {
			s.CreatedAt = time.Unix(int64(i), 0)
		}
		SortByOrder(active)
		before := ids(active)

		policy.Rebalance(active)
		SortByOrder(active)

		assert.Equal(t, before, ids(active), "iteration %d", iter)
		assert.NoError(t, ValidateUniqueOrders(active))
		assert.False(t, policy.NeedsRebalancing(active))

		again := policy.Rebalance(active)
		assert.Empty(t, again, "rebalance must be idempotent")
	}
}

func TestRebalance_TouchesOnlyOrder(t *testing.T) {
	active := stopsWithOrders(3, 3, 4)
	active[0].EstimatedTime = "07:30"
	active[0].Notes = "gate code 1234"

	DefaultOrderPolicy().Rebalance(active)
	assert.Equal(t, models.TimeOfDay("07:30"), active[0].EstimatedTime)
	assert.Equal(t, "gate code 1234", active[0].Notes)
	assert.Equal(t, []int{10, 20, 30}, orders(active))
}

func TestRenumber(t *testing.T) {
	active := stopsWithOrders(2, 5, 9)
	changed := Renumber(active)
	assert.Equal(t, []int{1, 2, 3}, orders(active))
	assert.Len(t, changed, 3)
}

func TestActiveStops_SkipsCancelled(t *testing.T) {
	stops := stopsWithOrders(3, 1, 2)
	stops[1].IsCancelled = true
	active := ActiveStops(stops)
	assert.Equal(t, []models.StopID{"stop-3", "stop-1"}, ids(active))
}

func TestOrderForTime(t *testing.T) {
	active := stopsWithOrders(1, 2, 3)
	active[0].EstimatedTime = "07:00"
	active[1].EstimatedTime = "07:20"
	active[2].EstimatedTime = "08:00"

	assert.Equal(t, 2, OrderForTime(active, "07:10", 0))
	assert.Equal(t, 4, OrderForTime(active, "08:30", 0))
	assert.Equal(t, 3, OrderForTime(active, "07:10", 2))
	assert.Equal(t, 1, OrderForTime(nil, "07:10", 0))
}

func TestValidatePairing(t *testing.T) {
	pickup := &gormModels.RouteStop{ID: "p", StopOrder: 1, StopType: constants.StopTypePickup, ChildID: "c1", ScheduleID: "s1"}
	dropoff := &gormModels.RouteStop{ID: "d", StopOrder: 2, StopType: constants.StopTypeDropoff, ChildID: "c1", ScheduleID: "s1"}

	assert.NoError(t, ValidatePairing([]*gormModels.RouteStop{pickup, dropoff}))
	assert.Error(t, ValidatePairing([]*gormModels.RouteStop{pickup}))

	dropoff.StopOrder = 0
	assert.Error(t, ValidatePairing([]*gormModels.RouteStop{pickup, dropoff}))
}
