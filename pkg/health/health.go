package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Combine-Capital/rcache/pkg/config"
	"github.com/Combine-Capital/rcache/pkg/logging"
	"golang.org/x/sync/singleflight"
)

// Status values reported by Check.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusOK        = "ok"
	StatusError     = "error"
)

// Health runs registered checkers concurrently and caches the aggregated result.
type Health struct {
	mu       sync.RWMutex
	checkers map[string]Checker

	cacheMu      sync.RWMutex
	cachedResult *HealthResult
	cacheExpiry  time.Time
	cacheTTL     time.Duration

	// Concurrent callers of an expired result share one round of checks.
	group singleflight.Group

	checkTimeout time.Duration
	logger       *logging.Logger
}

// HealthResult is the aggregated health check result.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the result of a single component check.
type CheckResult struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// New creates a Health with a 5 second check timeout and a 1 second cache TTL.
func New() *Health {
	return NewWithConfig(5*time.Second, time.Second)
}

// NewWithConfig creates a Health with the given check timeout and cache TTL.
func NewWithConfig(checkTimeout, cacheTTL time.Duration) *Health {
	return &Health{
		checkers:     make(map[string]Checker),
		checkTimeout: checkTimeout,
		cacheTTL:     cacheTTL,
		logger:       logging.Nop(),
	}
}

// NewFromConfig creates a Health from configuration. Zero values keep the defaults.
func NewFromConfig(cfg config.HealthConfig, logger *logging.Logger) *Health {
	h := New()
	if cfg.CheckTimeout > 0 {
		h.checkTimeout = cfg.CheckTimeout
	}
	if cfg.CacheTTL > 0 {
		h.cacheTTL = cfg.CacheTTL
	}
	if logger != nil {
		h.logger = logger.WithComponent("health")
	}
	return h
}

// RegisterChecker registers a checker for a named component, replacing any
// existing one with the same name.
func (h *Health) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checkers[name] = checker
}

// UnregisterChecker removes a checker and reports whether it existed.
func (h *Health) UnregisterChecker(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.checkers[name]; exists {
		delete(h.checkers, name)
		return true
	}
	return false
}

// Check executes all registered checkers and returns the aggregated result.
// Results are cached for the cache TTL.
func (h *Health) Check(ctx context.Context) *HealthResult {
	h.cacheMu.RLock()
	if h.cachedResult != nil && time.Now().Before(h.cacheExpiry) {
		result := h.cachedResult
		h.cacheMu.RUnlock()
		return result
	}
	h.cacheMu.RUnlock()

	v, _, _ := h.group.Do("check", func() (any, error) {
		result := h.executeChecks(ctx)

		h.cacheMu.Lock()
		h.cachedResult = result
		h.cacheExpiry = time.Now().Add(h.cacheTTL)
		h.cacheMu.Unlock()

		return result, nil
	})
	return v.(*HealthResult)
}

func (h *Health) executeChecks(ctx context.Context) *HealthResult {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	h.mu.RUnlock()

	type checkResponse struct {
		name   string
		result CheckResult
	}

	resultChan := make(chan checkResponse, len(checkers))
	var wg sync.WaitGroup

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()
			resultChan <- checkResponse{name: name, result: h.run(ctx, name, checker)}
		}(name, checker)
	}
	wg.Wait()
	close(resultChan)

	checks := make(map[string]CheckResult, len(checkers))
	status := StatusHealthy
	for response := range resultChan {
		checks[response.name] = response.result
		if response.result.Status != StatusOK {
			status = StatusUnhealthy
		}
	}

	return &HealthResult{Status: status, Checks: checks}
}

// run executes one checker with the check timeout unless ctx has a deadline.
func (h *Health) run(ctx context.Context, name string, checker Checker) CheckResult {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.checkTimeout)
		defer cancel()
	}

	start := time.Now()
	err := checker.Check(ctx)
	result := CheckResult{
		Status:     StatusOK,
		DurationMs: float64(time.Since(start)) / float64(time.Millisecond),
	}
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		h.logger.Warn().Str(logging.Component, name).Err(err).Msg("Health check failed")
	}
	return result
}

// CheckComponent runs a single registered checker, bypassing the cache.
func (h *Health) CheckComponent(ctx context.Context, name string) error {
	h.mu.RLock()
	checker, exists := h.checkers[name]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("health checker %q not registered", name)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.checkTimeout)
		defer cancel()
	}

	return checker.Check(ctx)
}

// IsHealthy reports whether all registered checkers pass.
func (h *Health) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Status == StatusHealthy
}

// ClearCache forces the next Check to re-execute the checkers.
func (h *Health) ClearCache() {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()

	h.cachedResult = nil
	h.cacheExpiry = time.Time{}
}
