package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check response
type HealthCheck struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	Metrics    SystemMetrics              `json:"metrics"`
}

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LastCheck time.Time    `json:"last_check"`
}

// SystemMetrics represents system performance metrics
type SystemMetrics struct {
	MemoryUsage   float64 `json:"memory_usage_mb"`
	Goroutines    int     `json:"goroutines"`
	ActiveClients int     `json:"active_clients"`
	DatabaseStats string  `json:"database_stats,omitempty"`
}

// HealthChecker reports on the database and the hub
type HealthChecker struct {
	startTime time.Time
	hub       *Hub
	db        Database
	version   string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(hub *Hub, db Database, version string) *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		hub:       hub,
		db:        db,
		version:   version,
	}
}

// CheckHealth performs a health check of every component
func (hc *HealthChecker) CheckHealth() *HealthCheck {
	now := time.Now()
	components := map[string]ComponentHealth{
		"database":  hc.checkDatabaseHealth(),
		"websocket": hc.checkWebSocketHealth(),
	}

	status := HealthStatusHealthy
	for _, c := range components {
		if c.Status == HealthStatusUnhealthy {
			status = HealthStatusUnhealthy
			break
		}
		if c.Status == HealthStatusDegraded {
			status = HealthStatusDegraded
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics := SystemMetrics{
		MemoryUsage: float64(m.Alloc) / 1024 / 1024,
		Goroutines:  runtime.NumGoroutine(),
	}
	if hc.hub != nil {
		metrics.ActiveClients = hc.hub.ClientCount()
	}
	if hc.db != nil {
		if stats, err := hc.db.GetDatabaseStats(); err == nil {
			metrics.DatabaseStats = stats
		}
	}

	return &HealthCheck{
		Status:     status,
		Timestamp:  now,
		Version:    hc.version,
		Uptime:     now.Sub(hc.startTime).Round(time.Second).String(),
		Components: components,
		Metrics:    metrics,
	}
}

func (hc *HealthChecker) checkDatabaseHealth() ComponentHealth {
	health := ComponentHealth{LastCheck: time.Now()}
	if hc.db == nil {
		health.Status = HealthStatusUnhealthy
		health.Message = "Database not initialized"
		return health
	}

	start := time.Now()
	err := hc.db.Ping()
	responseTime := time.Since(start)

	switch {
	case err != nil:
		health.Status = HealthStatusUnhealthy
		health.Message = fmt.Sprintf("Database error: %v", err)
		DatabaseLogger.Error("Database health check failed", err)
	case responseTime > 5*time.Second:
		health.Status = HealthStatusDegraded
		health.Message = fmt.Sprintf("Slow response: %v", responseTime)
	default:
		health.Status = HealthStatusHealthy
		health.Message = fmt.Sprintf("Response time: %v", responseTime)
	}
	return health
}

func (hc *HealthChecker) checkWebSocketHealth() ComponentHealth {
	health := ComponentHealth{LastCheck: time.Now()}
	if hc.hub == nil {
		health.Status = HealthStatusUnhealthy
		health.Message = "Hub not initialized"
		return health
	}

	clientCount := hc.hub.ClientCount()
	if clientCount >= 1000 {
		health.Status = HealthStatusDegraded
		health.Message = fmt.Sprintf("High client count: %d", clientCount)
	} else {
		health.Status = HealthStatusHealthy
		health.Message = fmt.Sprintf("Active clients: %d", clientCount)
	}
	return health
}

// HealthCheckHandler handles HTTP health check requests
func (hc *HealthChecker) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := hc.CheckHealth()

	w.Header().Set("Content-Type", "application/json")
	if health.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(health); err != nil {
		ServerLogger.Error("Failed to encode health check response", err)
	}
}
