package resilience

import (
	"math"
	"time"
)

// Policy is the retry schedule: the delay after the k-th failed attempt
// (0-based) is BackoffBase^k BackoffUnits, capped at MaxBackoff.
type Policy struct {
	MaxAttempts int
	BackoffBase float64
	BackoffUnit time.Duration
	MaxBackoff  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: 2,
		BackoffUnit: time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Delay returns how long to wait after failedAttempts attempts have failed.
func (p Policy) Delay(failedAttempts int) time.Duration {
	if failedAttempts < 1 {
		return 0
	}
	wait := time.Duration(math.Pow(p.BackoffBase, float64(failedAttempts-1)) * float64(p.BackoffUnit))
	if wait < 0 || (p.MaxBackoff > 0 && wait > p.MaxBackoff) {
		return p.MaxBackoff
	}
	return wait
}

func (p Policy) normalize() Policy {
	out := p
	def := DefaultPolicy()
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.BackoffBase < 1.0 {
		out.BackoffBase = def.BackoffBase
	}
	if out.BackoffUnit <= 0 {
		out.BackoffUnit = def.BackoffUnit
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	if out.MaxBackoff < out.BackoffUnit {
		out.MaxBackoff = out.BackoffUnit
	}
	return out
}

type Config struct {
	Retry Policy

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		Retry: DefaultPolicy(),

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	out.Retry = out.Retry.normalize()

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
