// health.go - Health monitoring for the payment components
package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// ErrDegraded is wrapped by checks whose component works but refuses some calls.
var ErrDegraded = errors.New("degraded")

// Check reports the health of one component.
type Check func(ctx context.Context) error

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency,omitempty"`
}

// SystemHealth represents the overall system health
type SystemHealth struct {
	OverallStatus HealthStatus      `json:"overall_status"`
	Timestamp     time.Time         `json:"timestamp"`
	Components    []ComponentHealth `json:"components"`
	Uptime        time.Duration     `json:"uptime"`
	Version       string            `json:"version"`
}

// HealthChecker runs the registered component checks on demand.
type HealthChecker struct {
	mu         sync.Mutex
	components map[string]*ComponentHealth
	checks     map[string]Check
	startTime  time.Time
	version    string
}

func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		components: make(map[string]*ComponentHealth),
		checks:     make(map[string]Check),
		startTime:  time.Now(),
		version:    version,
	}
}

// RegisterComponent registers a health check for a component
func (hc *HealthChecker) RegisterComponent(name string, check Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.components[name] = &ComponentHealth{
		Name:      name,
		Status:    Healthy,
		Message:   "Component registered",
		LastCheck: time.Now(),
	}
	hc.checks[name] = check
}

// CheckHealth performs health checks for all registered components
func (hc *HealthChecker) CheckHealth(ctx context.Context) *SystemHealth {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	overallStatus := Healthy
	components := make([]ComponentHealth, 0, len(hc.components))

	for name, component := range hc.components {
		start := time.Now()
		err := hc.checks[name](ctx)
		component.Latency = time.Since(start)
		component.LastCheck = time.Now()

		switch {
		case err == nil:
			component.Status = Healthy
			component.Message = "OK"
		case errors.Is(err, ErrDegraded):
			component.Status = Degraded
			component.Message = err.Error()
		default:
			component.Status = Unhealthy
			component.Message = err.Error()
		}

		if component.Status == Unhealthy {
			overallStatus = Unhealthy
		} else if component.Status == Degraded && overallStatus == Healthy {
			overallStatus = Degraded
		}

		components = append(components, *component)
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })

	return &SystemHealth{
		OverallStatus: overallStatus,
		Timestamp:     time.Now(),
		Components:    components,
		Uptime:        time.Since(hc.startTime),
		Version:       hc.version,
	}
}

// HealthCheckResponse represents the response format for health check endpoints
type HealthCheckResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Data    *SystemHealth `json:"data,omitempty"`
}

// CreateHealthResponse creates a standardized health check response
func CreateHealthResponse(health *SystemHealth) *HealthCheckResponse {
	status := "success"
	message := "System is healthy"

	if health.OverallStatus == Unhealthy {
		status = "error"
		message = "System is unhealthy"
	} else if health.OverallStatus == Degraded {
		status = "warning"
		message = "System is degraded"
	}

	return &HealthCheckResponse{
		Status:  status,
		Message: message,
		Data:    health,
	}
}
