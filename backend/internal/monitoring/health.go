package monitoring

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

type CheckFunc func(ctx context.Context) error

type HealthCheck struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	CheckedAt time.Time     `json:"checked_at"`
	// Optional checks report their state but do not fail readiness.
	Optional bool `json:"optional,omitempty"`
}

type registeredCheck struct {
	fn       CheckFunc
	optional bool
}

type healthChecker struct {
	checks map[string]registeredCheck
	mu     sync.RWMutex
}

var globalHealthChecker = &healthChecker{checks: make(map[string]registeredCheck)}

func RegisterHealthCheck(name string, fn CheckFunc) {
	register(name, fn, false)
}

// RegisterOptionalHealthCheck adds a check for a dependency the service can
// run without, like redis with the memory fallback.
func RegisterOptionalHealthCheck(name string, fn CheckFunc) {
	register(name, fn, true)
}

func register(name string, fn CheckFunc, optional bool) {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	globalHealthChecker.checks[name] = registeredCheck{fn: fn, optional: optional}
}

// RunHealthChecks runs every registered check concurrently, each bounded by
// healthCheckTimeout.
func RunHealthChecks(ctx context.Context) map[string]HealthCheck {
	globalHealthChecker.mu.RLock()
	names := make([]string, 0, len(globalHealthChecker.checks))
	checks := make(map[string]registeredCheck, len(globalHealthChecker.checks))
	for name, check := range globalHealthChecker.checks {
		names = append(names, name)
		checks[name] = check
	}
	globalHealthChecker.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]HealthCheck, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string, check registeredCheck) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			start := time.Now()
			err := check.fn(checkCtx)
			result := HealthCheck{
				Name:      name,
				Status:    "healthy",
				Duration:  time.Since(start),
				CheckedAt: time.Now(),
				Optional:  check.optional,
			}
			if err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checks[name])
	}
	wg.Wait()
	return results
}

func healthy(results map[string]HealthCheck) bool {
	for _, r := range results {
		if r.Status != "healthy" && !r.Optional {
			return false
		}
	}
	return true
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		results := RunHealthChecks(c.Request.Context())

		status, code := "healthy", http.StatusOK
		if !healthy(results) {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"service":   "task-ledger-backend",
			"timestamp": time.Now().Format(time.RFC3339),
			"checks":    results,
		})
	}
}

func ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !healthy(RunHealthChecks(c.Request.Context())) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "alive",
			"uptime": GetSystemMetrics().Uptime.String(),
		})
	}
}
