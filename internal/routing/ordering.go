package routing

import (
	"fmt"
	"sort"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
)

// Order values are only meaningful among a route's active (non-cancelled)
// stops. Cancelled stops keep the value they had when cancelled and are never
// moved, so every function here expects the active set.

const (
	DefaultOrderSpacing = 10
	DefaultMinOrderGap  = 1
)

// OrderPolicy controls rebalancing
type OrderPolicy struct {
	// Spacing is the distance between consecutive values after a rebalance
	Spacing int
	// MinGap is the smallest acceptable distance between adjacent values
	MinGap int
}

func DefaultOrderPolicy() OrderPolicy {
	return OrderPolicy{Spacing: DefaultOrderSpacing, MinGap: DefaultMinOrderGap}
}

// SortByOrder sorts stops by stop order. Ties keep creation order, then id,
// so duplicate values left by concurrent writers resolve deterministically.
func SortByOrder(stops []*gormModels.RouteStop) {
	sort.SliceStable(stops, func(i, j int) bool {
		a, b := stops[i], stops[j]
		if a.StopOrder != b.StopOrder {
			return a.StopOrder < b.StopOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// ActiveStops returns the non-cancelled stops sorted by order
func ActiveStops(stops []*gormModels.RouteStop) []*gormModels.RouteStop {
	active := make([]*gormModels.RouteStop, 0, len(stops))
	for _, s := range stops {
		if !s.IsCancelled {
			active = append(active, s)
		}
	}
	SortByOrder(active)
	return active
}

// MaxOrder returns the highest order among stops, 0 when empty
func MaxOrder(stops []*gormModels.RouteStop) int {
	max := 0
	for _, s := range stops {
		if s.StopOrder > max {
			max = s.StopOrder
		}
	}
	return max
}

// HasCollision reports whether an active stop already uses order
func HasCollision(active []*gormModels.RouteStop, order int) bool {
	for _, s := range active {
		if s.StopOrder == order {
			return true
		}
	}
	return false
}

// InsertAt places stop at order. On collision every active stop with
// stop_order >= order moves up by one first. Returns the shifted stops and
// the new active list, sorted.
func InsertAt(active []*gormModels.RouteStop, order int, stop *gormModels.RouteStop) ([]*gormModels.RouteStop, []*gormModels.RouteStop, error) {
	if order < 1 {
		return nil, nil, Validation(constants.ErrCodeInvalidStopOrder, fmt.Sprintf("got %d", order))
	}
	var shifted []*gormModels.RouteStop
	if HasCollision(active, order) {
		for _, s := range active {
			if s.StopOrder >= order {
				s.StopOrder++
				shifted = append(shifted, s)
			}
		}
	}
	stop.StopOrder = order
	result := append(append([]*gormModels.RouteStop{}, active...), stop)
	SortByOrder(result)
	return shifted, result, nil
}

// ValidateReorder checks that ids names exactly the active stops, once each
func ValidateReorder(active []*gormModels.RouteStop, ids []models.StopID) error {
	if len(ids) != len(active) {
		return Validation(constants.ErrCodeReorderSetMismatch,
			fmt.Sprintf("expected %d stops, got %d", len(active), len(ids)))
	}
	known := make(map[models.StopID]bool, len(active))
	for _, s := range active {
		known[s.ID] = true
	}
	seen := make(map[models.StopID]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return Validation(constants.ErrCodeReorderSetMismatch, fmt.Sprintf("stop %s is not an active stop of this route", id))
		}
		if seen[id] {
			return Validation(constants.ErrCodeReorderSetMismatch, fmt.Sprintf("stop %s listed twice", id))
		}
		seen[id] = true
	}
	return nil
}

// Reorder assigns dense values 1..N following ids. Returns the stops whose
// value changed.
func Reorder(active []*gormModels.RouteStop, ids []models.StopID) ([]*gormModels.RouteStop, error) {
	if err := ValidateReorder(active, ids); err != nil {
		return nil, err
	}
	byID := make(map[models.StopID]*gormModels.RouteStop, len(active))
	for _, s := range active {
		byID[s.ID] = s
	}
	var changed []*gormModels.RouteStop
	for i, id := range ids {
		s := byID[id]
		if s.StopOrder != i+1 {
			s.StopOrder = i + 1
			changed = append(changed, s)
		}
	}
	return changed, nil
}

// Renumber assigns dense values 1..N keeping the current relative order
func Renumber(active []*gormModels.RouteStop) []*gormModels.RouteStop {
	return assignSpaced(active, 1)
}

// NeedsRebalancing reports whether two adjacent values are closer than MinGap
func (p OrderPolicy) NeedsRebalancing(active []*gormModels.RouteStop) bool {
	if len(active) < 2 {
		return false
	}
	sorted := append([]*gormModels.RouteStop{}, active...)
	SortByOrder(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].StopOrder-sorted[i-1].StopOrder < p.MinGap {
			return true
		}
	}
	return false
}

// Rebalance spreads values evenly by Spacing keeping relative order.
// Applying it twice yields the same values.
func (p OrderPolicy) Rebalance(active []*gormModels.RouteStop) []*gormModels.RouteStop {
	spacing := p.Spacing
	if spacing < 1 {
		spacing = 1
	}
	return assignSpaced(active, spacing)
}

func assignSpaced(active []*gormModels.RouteStop, spacing int) []*gormModels.RouteStop {
	SortByOrder(active)
	var changed []*gormModels.RouteStop
	for i, s := range active {
		want := (i + 1) * spacing
		if s.StopOrder != want {
			s.StopOrder = want
			changed = append(changed, s)
		}
	}
	return changed
}

// OrderForTime returns the order at which a stop estimated at t should be
// inserted: just before the first active stop scheduled later than t and
// after minOrder, or after the last stop.
func OrderForTime(active []*gormModels.RouteStop, t models.TimeOfDay, minOrder int) int {
	want, err := t.Minutes()
	if err == nil {
		for _, s := range active {
			if s.StopOrder <= minOrder {
				continue
			}
			mins, serr := s.EstimatedTime.Minutes()
			if serr != nil {
				continue
			}
			if mins > want {
				return s.StopOrder
			}
		}
	}
	next := MaxOrder(active) + 1
	if next <= minOrder {
		next = minOrder + 1
	}
	return next
}

type pairKey struct {
	child    models.ChildID
	schedule models.ScheduleID
}

// ValidatePairing checks that every (child, schedule) on the active stops has
// exactly one PICKUP followed by one DROPOFF
func ValidatePairing(active []*gormModels.RouteStop) error {
	type pair struct {
		pickups, dropoffs int
		pickupOrder       int
		dropoffOrder      int
	}
	pairs := map[pairKey]*pair{}
	for _, s := range active {
		k := pairKey{s.ChildID, s.ScheduleID}
		p := pairs[k]
		if p == nil {
			p = &pair{}
			pairs[k] = p
		}
		switch s.StopType {
		case constants.StopTypePickup:
			p.pickups++
			p.pickupOrder = s.StopOrder
		case constants.StopTypeDropoff:
			p.dropoffs++
			p.dropoffOrder = s.StopOrder
		}
	}
	for k, p := range pairs {
		if p.pickups != 1 || p.dropoffs != 1 {
			return fmt.Errorf("child %s schedule %s has %d pickups and %d dropoffs", k.child, k.schedule, p.pickups, p.dropoffs)
		}
		if p.dropoffOrder <= p.pickupOrder {
			return fmt.Errorf("child %s schedule %s drops off before pickup", k.child, k.schedule)
		}
	}
	return nil
}

// ValidateUniqueOrders checks that no two active stops share an order
func ValidateUniqueOrders(active []*gormModels.RouteStop) error {
	seen := map[int]models.StopID{}
	for _, s := range active {
		if other, ok := seen[s.StopOrder]; ok {
			return fmt.Errorf("stops %s and %s share order %d", other, s.ID, s.StopOrder)
		}
		seen[s.StopOrder] = s.ID
	}
	return nil
}
