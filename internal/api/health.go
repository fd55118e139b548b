package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type serviceStatus struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

type healthCheckResponse struct {
	Status   string                   `json:"status"`
	Uptime   string                   `json:"uptime"`
	Services map[string]serviceStatus `json:"services"`
}

// HealthCheckHandler handles GET /healthCheck. Redis is optional and only
// reported when configured.
func HealthCheckHandler(db *sqlx.DB, rdb *redis.Client, upSince time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := make(map[string]serviceStatus)

		if db != nil {
			services["database"] = pingStatus(db.PingContext(r.Context()), "Database connected")
		}
		if rdb != nil {
			services["redis"] = pingStatus(rdb.Ping(r.Context()).Err(), "Redis connected")
		}

		overallStatus := "ok"
		for _, svc := range services {
			if svc.Status != "ok" {
				overallStatus = "down"
				break
			}
		}

		resp := healthCheckResponse{
			Services: services,
			Status:   overallStatus,
			Uptime:   time.Since(upSince).Round(time.Second).String(),
		}
		w.Header().Set("Content-Type", "application/json")
		if overallStatus != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func pingStatus(err error, okDetails string) serviceStatus {
	if err != nil {
		return serviceStatus{Status: "down", Details: err.Error()}
	}
	return serviceStatus{Status: "ok", Details: okDetails}
}
