// Package health aggregates component checks behind liveness and readiness
// endpoints.
//
// The cache client satisfies Checker directly, so a service typically wires it
// like this:
//
//	h := health.NewFromConfig(cfg.Health, logger)
//	h.RegisterChecker("cache", cacheClient)
//
//	mux := http.NewServeMux()
//	h.Routes(mux)
//
// Liveness never runs checkers. Readiness fails when any registered checker
// returns an error.
package health

import (
	"context"
)

// Checker reports the health of one component. Implementations must respect
// the deadline on ctx.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}
