package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
	"caretransport/dispatch/internal/providers"
	"caretransport/dispatch/internal/routing"
)

// OptimizationService sends a day's transport needs to the route optimizer
// and turns its solution into routes
type OptimizationService struct {
	store        *repositories.Store
	routes       *RouteService
	provider     providers.OptimizationProvider
	availability DriverAvailabilityChecker
	metrics      *metrics.MetricsRegistry
	clock        clock.Clock
}

// NewOptimizationService creates a new optimization service
func NewOptimizationService(
	store *repositories.Store,
	routes *RouteService,
	provider providers.OptimizationProvider,
	availability DriverAvailabilityChecker,
	m *metrics.MetricsRegistry,
	clk clock.Clock,
) *OptimizationService {
	return &OptimizationService{
		store:        store,
		routes:       routes,
		provider:     provider,
		availability: availability,
		metrics:      m,
		clock:        clk,
	}
}

// SubmitOptimizationInput selects the needs to optimize
type SubmitOptimizationInput struct {
	CompanyID models.CompanyID
	Date      time.Time
	StartTime models.TimeOfDay
	EndTime   models.TimeOfDay
	RouteType constants.RouteType
}

// OptimizationApplyResult reports an apply. Routes are created
// independently; one failing leaves the others in place.
type OptimizationApplyResult struct {
	SuccessCount       int              `json:"success_count"`
	FailedCount        int              `json:"failed_count"`
	CreatedRouteIDs    []models.RouteID `json:"created_route_ids"`
	Errors             []string         `json:"errors"`
	UnassignedChildren []models.ChildID `json:"unassigned_children"`
}

// idMapping translates provider-local ids back to domain ids. It is
// stored with the task; the provider never sees domain ids.
type idMapping struct {
	Schedules map[string]models.ScheduleID `json:"schedules"`
	Children  map[string]models.ChildID    `json:"children"`
	Drivers   map[string]models.DriverID   `json:"drivers"`
	Vehicles  map[string]models.VehicleID  `json:"vehicles"`
}

func newIDMapping() idMapping {
	return idMapping{
		Schedules: map[string]models.ScheduleID{},
		Children:  map[string]models.ChildID{},
		Drivers:   map[string]models.DriverID{},
		Vehicles:  map[string]models.VehicleID{},
	}
}

// SubmitOptimization builds the problem from the active schedules and the
// drivers available on the date, each paired with a vehicle, and submits it
func (s *OptimizationService) SubmitOptimization(ctx context.Context, in SubmitOptimizationInput) (*gormModels.OptimizationTask, error) {
	for _, t := range []models.TimeOfDay{in.StartTime, in.EndTime} {
		if _, err := models.ParseTimeOfDay(string(t)); err != nil {
			return nil, routing.Validation(constants.ErrCodeInvalidTimeOfDay, string(t))
		}
	}
	startMins, _ := in.StartTime.Minutes()
	endMins, _ := in.EndTime.Minutes()
	if endMins <= startMins {
		return nil, routing.Validation(constants.ErrCodeInvalidDateRange, "end time must follow start time")
	}
	day := models.Day(in.Date)

	schedules, err := s.store.Directory.ListActiveSchedules(ctx, in.CompanyID, in.RouteType)
	if err != nil {
		return nil, err
	}
	drivers, err := s.store.Directory.ListActiveDrivers(ctx, in.CompanyID)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.store.Directory.ListActiveVehicles(ctx, in.CompanyID)
	if err != nil {
		return nil, err
	}

	mapping := newIDMapping()
	req := &providers.OptimizationRequest{Date: models.FormatDay(day)}

	childKeys := map[models.ChildID]string{}
	for i, sc := range schedules {
		childKey, ok := childKeys[sc.ChildID]
		if !ok {
			childKey = fmt.Sprintf("child-%d", len(childKeys)+1)
			childKeys[sc.ChildID] = childKey
			mapping.Children[childKey] = sc.ChildID
		}
		id := fmt.Sprintf("schedule-%d", i+1)
		mapping.Schedules[id] = sc.ID
		req.Shipments = append(req.Shipments, providers.Shipment{
			ID:       id,
			ChildID:  childKey,
			Pickup:   providers.Location{Lat: sc.PickupAddress.Lat, Lng: sc.PickupAddress.Lng, TimeWindow: []string{string(sc.PickupTime)}},
			Delivery: providers.Location{Lat: sc.DropoffAddress.Lat, Lng: sc.DropoffAddress.Lng, TimeWindow: []string{string(sc.DropoffTime)}},
			Amount:   1,
		})
	}

	v := 0
	for _, d := range drivers {
		if v >= len(vehicles) {
			break
		}
		if s.availability != nil {
			availability, err := s.availability.Check(ctx, in.CompanyID, d.ID, day)
			if err != nil {
				return nil, err
			}
			if !availability.Available {
				continue
			}
		}
		vehicle := vehicles[v]
		v++
		driverKey, vehicleKey := fmt.Sprintf("driver-%d", v), fmt.Sprintf("vehicle-%d", v)
		mapping.Drivers[driverKey] = d.ID
		mapping.Vehicles[vehicleKey] = vehicle.ID
		req.Agents = append(req.Agents, providers.Agent{
			DriverID:  driverKey,
			VehicleID: vehicleKey,
			Capacity:  vehicle.Capacity,
			Start:     string(in.StartTime),
			End:       string(in.EndTime),
		})
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal id mapping: %w", err)
	}
	task := &gormModels.OptimizationTask{
		CompanyID: in.CompanyID,
		Date:      day,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		RouteType: in.RouteType,
		Status:    constants.OptimizationStatusPending,
		IDMapping: string(mappingJSON),
	}

	providerTaskID, submitErr := s.provider.Submit(ctx, req)
	if submitErr != nil {
		task.Status = constants.OptimizationStatusFailed
		task.ErrorMessage = submitErr.Error()
	}
	task.ProviderTaskID = providerTaskID
	if err := s.store.Tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	if submitErr != nil {
		logging.Warn("Optimization submit failed", "company_id", in.CompanyID, "task_id", task.ID, "error", submitErr)
		return task, submitErr
	}

	logging.Info("Optimization submitted",
		"company_id", in.CompanyID,
		"task_id", task.ID,
		"provider_task_id", providerTaskID,
		"shipments", len(req.Shipments),
		"agents", len(req.Agents))
	return task, nil
}

func (s *OptimizationService) loadTask(ctx context.Context, companyID models.CompanyID, taskID models.OptimizationTaskID) (*gormModels.OptimizationTask, error) {
	task, err := s.store.Tasks.GetByID(ctx, companyID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, routing.NotFound(constants.ErrCodeTaskNotFound, string(taskID))
	}
	return task, nil
}

// RefreshOptimization polls the provider for a PENDING task and stores the
// raw solution once available. Other tasks are returned unchanged.
func (s *OptimizationService) RefreshOptimization(ctx context.Context, companyID models.CompanyID, taskID models.OptimizationTaskID) (*gormModels.OptimizationTask, error) {
	task, err := s.loadTask(ctx, companyID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != constants.OptimizationStatusPending {
		return task, nil
	}

	result, err := s.provider.Result(ctx, task.ProviderTaskID)
	if err != nil {
		return nil, err
	}
	switch result.Status {
	case providers.ProviderStatusCompleted:
		task.Status = constants.OptimizationStatusCompleted
		task.Response = string(result.Raw)
	case providers.ProviderStatusFailed:
		task.Status = constants.OptimizationStatusFailed
		task.ErrorMessage = result.Error
	default:
		return task, nil
	}
	if err := s.store.Tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ApplyOptimizationResult creates one route per solved vehicle route, each in
// its own transaction. Failures are collected; the task is marked APPLIED.
func (s *OptimizationService) ApplyOptimizationResult(ctx context.Context, companyID models.CompanyID, taskID models.OptimizationTaskID, actorID models.UserID) (*OptimizationApplyResult, error) {
	task, err := s.loadTask(ctx, companyID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != constants.OptimizationStatusCompleted {
		return nil, routing.InvalidState(constants.ErrCodeTaskNotReady, string(task.Status))
	}

	var mapping idMapping
	if err := json.Unmarshal([]byte(task.IDMapping), &mapping); err != nil {
		return nil, routing.Validation(constants.ErrCodeInvalidProviderResult, "id mapping: "+err.Error())
	}
	solution, err := providers.DecodeSolution(task.Response)
	if err != nil {
		return nil, routing.Validation(constants.ErrCodeInvalidProviderResult, err.Error())
	}

	result := &OptimizationApplyResult{
		CreatedRouteIDs:    []models.RouteID{},
		Errors:             []string{},
		UnassignedChildren: []models.ChildID{},
	}
	for i, sr := range solution.Routes {
		routeID, err := s.applyRoute(ctx, task, mapping, sr, i+1, actorID)
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sr.VehicleID, err))
			logging.Error("Failed to apply optimized route", "company_id", companyID, "task_id", task.ID, "vehicle", sr.VehicleID, "error", err)
			continue
		}
		result.SuccessCount++
		result.CreatedRouteIDs = append(result.CreatedRouteIDs, routeID)
	}
	for _, id := range solution.UnassignedChildren {
		if child, ok := mapping.Children[id]; ok {
			result.UnassignedChildren = append(result.UnassignedChildren, child)
		}
	}

	now := s.clock.Now()
	task.Status = constants.OptimizationStatusApplied
	task.AppliedAt = &now
	if err := s.store.Tasks.Save(ctx, task); err != nil {
		return nil, err
	}

	s.metrics.ObserveOptimization("created", result.SuccessCount)
	s.metrics.ObserveOptimization("failed", result.FailedCount)
	logging.Info("Optimization applied",
		"company_id", companyID,
		"task_id", task.ID,
		"routes_created", result.SuccessCount,
		"routes_failed", result.FailedCount,
		"unassigned", len(result.UnassignedChildren))
	return result, nil
}

func (s *OptimizationService) applyRoute(ctx context.Context, task *gormModels.OptimizationTask, mapping idMapping, sr providers.SolutionRoute, n int, actorID models.UserID) (models.RouteID, error) {
	vehicleID, ok := mapping.Vehicles[sr.VehicleID]
	if !ok {
		return "", routing.Validation(constants.ErrCodeInvalidProviderResult, "unknown vehicle "+sr.VehicleID)
	}
	var driverID *models.DriverID
	if sr.DriverID != "" {
		id, ok := mapping.Drivers[sr.DriverID]
		if !ok {
			return "", routing.Validation(constants.ErrCodeInvalidProviderResult, "unknown driver "+sr.DriverID)
		}
		driverID = models.DriverPtr(id)
	}
	stops, err := sequenceChildren(mapping, sr.Children)
	if err != nil {
		return "", err
	}
	estimatedStart, err := providerTime(task.Date, sr.EstimatedStart)
	if err != nil {
		return "", err
	}
	estimatedEnd, err := providerTime(task.Date, sr.EstimatedEnd)
	if err != nil {
		return "", err
	}

	in := CreateRouteInput{
		CompanyID: task.CompanyID,
		Date:      task.Date,
		DriverID:  driverID,
		VehicleID: vehicleID,
		Name:      fmt.Sprintf("Optimized %s %d", task.RouteType, n),
		RouteType: task.RouteType,
		Stops:     stops,
		ActorID:   actorID,
	}
	if in.DriverID != nil {
		if err := s.routes.checkDriver(ctx, task.CompanyID, *in.DriverID, task.Date); err != nil {
			return "", err
		}
	}

	var detail *RouteDetail
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		if detail, err = s.routes.createRouteTx(ctx, tx, in); err != nil {
			return err
		}
		route := detail.Route
		if estimatedStart != nil {
			route.EstimatedStart = estimatedStart
		}
		if estimatedEnd != nil {
			route.EstimatedEnd = estimatedEnd
		}
		distance, duration := sr.TotalDistance, sr.TotalTime
		route.PlannedDistanceMeters = &distance
		route.PlannedDurationSecs = &duration
		return tx.Routes.Save(ctx, route)
	})
	if err != nil {
		return "", err
	}
	return detail.Route.ID, nil
}

type sequencedStop struct {
	input   StopInput
	minutes int
}

// sequenceChildren turns solved children into stop inputs. Pickups follow
// pickupOrder. Each dropoff goes right before the first later pickup that
// starts after it, or after the last pickup, so a dropoff never precedes
// its own pickup.
func sequenceChildren(mapping idMapping, children []providers.SolutionChild) ([]StopInput, error) {
	ordered := make([]providers.SolutionChild, len(children))
	copy(ordered, children)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PickupOrder < ordered[j].PickupOrder })

	var (
		stops   []StopInput
		pending []sequencedStop
		seen    = map[models.ScheduleID]bool{}
	)
	flush := func(until int) {
		sort.SliceStable(pending, func(i, j int) bool { return pending[i].minutes < pending[j].minutes })
		kept := pending[:0]
		for _, d := range pending {
			if d.minutes <= until {
				stops = append(stops, d.input)
				continue
			}
			kept = append(kept, d)
		}
		pending = kept
	}

	for _, c := range ordered {
		scheduleID, ok := mapping.Schedules[c.ScheduleID]
		if !ok {
			return nil, routing.Validation(constants.ErrCodeInvalidProviderResult, "unknown schedule "+c.ScheduleID)
		}
		if childID, ok := mapping.Children[c.ChildID]; !ok {
			return nil, routing.Validation(constants.ErrCodeInvalidProviderResult, "unknown child "+c.ChildID)
		} else if seen[scheduleID] {
			return nil, routing.Validation(constants.ErrCodeInvalidProviderResult, fmt.Sprintf("child %s listed twice", childID))
		}
		seen[scheduleID] = true

		pickupMins, err := models.TimeOfDay(c.PickupTime).Minutes()
		if err != nil {
			return nil, routing.Validation(constants.ErrCodeInvalidProviderResult, "pickup time "+c.PickupTime)
		}
		dropoffMins, err := models.TimeOfDay(c.DropoffTime).Minutes()
		if err != nil {
			return nil, routing.Validation(constants.ErrCodeInvalidProviderResult, "dropoff time "+c.DropoffTime)
		}

		flush(pickupMins - 1)
		stops = append(stops, positioned(StopInput{
			ScheduleID:    scheduleID,
			StopType:      constants.StopTypePickup,
			EstimatedTime: models.TimeOfDay(c.PickupTime),
		}, c.PickupLatLng))
		pending = append(pending, sequencedStop{
			input: positioned(StopInput{
				ScheduleID:    scheduleID,
				StopType:      constants.StopTypeDropoff,
				EstimatedTime: models.TimeOfDay(c.DropoffTime),
			}, c.DropoffLatLng),
			minutes: dropoffMins,
		})
	}
	flush(math.MaxInt)
	return stops, nil
}

func positioned(in StopInput, at *providers.LatLng) StopInput {
	if at != nil {
		lat, lng := at.Lat, at.Lng
		in.Lat, in.Lng = &lat, &lng
	}
	return in
}

// providerTime reads an RFC 3339 timestamp or an HH:MM time on day. Empty
// values are left to the stop-derived estimate.
func providerTime(day time.Time, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := models.TimeOfDay(value).On(day)
	if err != nil {
		return nil, routing.Validation(constants.ErrCodeInvalidProviderResult, "estimated time "+value)
	}
	return &t, nil
}
