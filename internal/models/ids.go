package models

// Identifier types are distinct so a RouteID can never be passed where a
// StopID is expected. Equality is by underlying value.
type (
	CompanyID          string
	RouteID            string
	StopID             string
	SeriesID           string
	ScheduleID         string
	ChildID            string
	DriverID           string
	VehicleID          string
	AbsenceID          string
	UserID             string
	OptimizationTaskID string
)

func (id CompanyID) String() string          { return string(id) }
func (id RouteID) String() string            { return string(id) }
func (id StopID) String() string             { return string(id) }
func (id SeriesID) String() string           { return string(id) }
func (id ScheduleID) String() string         { return string(id) }
func (id ChildID) String() string            { return string(id) }
func (id DriverID) String() string           { return string(id) }
func (id VehicleID) String() string          { return string(id) }
func (id AbsenceID) String() string          { return string(id) }
func (id UserID) String() string             { return string(id) }
func (id OptimizationTaskID) String() string { return string(id) }

// DriverPtr returns a pointer to a copy of id, or nil for the empty id
func DriverPtr(id DriverID) *DriverID {
	if id == "" {
		return nil
	}
	return &id
}

// SameDriver compares two nullable driver references
func SameDriver(a, b *DriverID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
