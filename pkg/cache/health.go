package cache

import (
	"context"
	"time"
)

// HealthChecker defines the interface for cache health checking.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckHealthWithTimeout performs a health check bounded by timeout.
func CheckHealthWithTimeout(ctx context.Context, hc HealthChecker, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return hc.CheckHealth(ctx)
}
