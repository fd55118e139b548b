package constants

// Event types appended to outbox_events
const (
	EventRouteCreated        = "route.created"
	EventRouteStarted        = "route.started"
	EventRouteCompleted      = "route.completed"
	EventRouteCancelled      = "route.cancelled"
	EventRouteDriverMissing  = "route.driver_missing"
	EventRouteDriverAssigned = "route.driver_assigned"
	EventRouteDelayPredicted = "route.delay_predicted"

	EventScheduleAddedToRoute     = "route.schedule_added"
	EventScheduleCancelledOnRoute = "route.schedule_cancelled"
	EventScheduleDeletedFromRoute = "route.schedule_deleted"
	EventStopsReordered           = "route.stops_reordered"
	EventStopsRebalanced          = "route.stops_rebalanced"
	EventStopCancelled            = "stop.cancelled"
	EventStopExecuted             = "stop.executed"
	EventStopUpdated              = "stop.updated"

	EventSeriesCreated          = "series.created"
	EventSeriesChildAdded       = "series.child_added"
	EventSeriesChildRemoved     = "series.child_removed"
	EventSeriesCancelled        = "series.cancelled"
	EventSeriesPaused           = "series.paused"
	EventSeriesResumed          = "series.resumed"
	EventSeriesDriverReassigned = "series.driver_reassigned"
	EventSeriesDriverDetached   = "series.driver_detached"
)

// Aggregate types stored alongside events
const (
	AggregateRoute  = "route"
	AggregateSeries = "series"
)

// Redis stream and consumer group for published events
const (
	RouteEventsStream     = "route-events"
	AuditConsumerGroup    = "audit-log"
	RouteEventsPayloadKey = "data"
)
