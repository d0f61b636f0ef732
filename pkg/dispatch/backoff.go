package dispatch

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffConfig configures the pause between attempts of one call.
type BackoffConfig struct {
	// InitialDelay is the pause before the first retry. 0 disables pausing.
	InitialDelay time.Duration

	// MaxDelay caps the pause. Default is 2 seconds.
	MaxDelay time.Duration

	// Multiplier is the growth factor between pauses. Default is 2.0.
	Multiplier float64

	// Jitter is the randomization factor (0.0 to 1.0). Default is 0.25 (±25%).
	Jitter float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.MaxDelay == 0 {
		c.MaxDelay = 2 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Jitter == 0 {
		c.Jitter = 0.25
	}
	return c
}

// newBackOff returns a factory for per-call backoff state. A zero InitialDelay
// yields immediate retries.
func (c BackoffConfig) newBackOff() func() backoff.BackOff {
	if c.InitialDelay <= 0 {
		return func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	}
	c = c.withDefaults()
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = c.InitialDelay
		b.MaxInterval = c.MaxDelay
		b.Multiplier = c.Multiplier
		b.RandomizationFactor = c.Jitter
		return b
	}
}
