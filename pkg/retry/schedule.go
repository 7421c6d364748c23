package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Strategy decides how long to wait before the next poll
type Strategy interface {
	NextDelay(attempt int) time.Duration
}

// Fixed waits the same delay every time. This is the baseline poll schedule.
type Fixed struct {
	Delay time.Duration
}

// NextDelay returns constant delay
func (f *Fixed) NextDelay(attempt int) time.Duration {
	return f.Delay
}

// ExponentialBackoff implements exponential backoff strategy
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// NextDelay calculates next delay for exponential backoff
func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	mult := e.Multiplier
	if mult <= 1 {
		mult = 2
	}
	delay := float64(e.InitialDelay) * math.Pow(mult, float64(attempt))
	if e.MaxDelay > 0 && delay > float64(e.MaxDelay) {
		return e.MaxDelay
	}
	return time.Duration(delay)
}

// Jittered spreads another strategy's delays by ±Factor
type Jittered struct {
	Strategy Strategy
	Factor   float64
}

// NextDelay returns the wrapped delay with jitter applied
func (j *Jittered) NextDelay(attempt int) time.Duration {
	return applyJitter(j.Strategy.NextDelay(attempt), j.Factor)
}

// New builds a strategy by name: "fixed" (default) or "exponential"
func New(name string, interval, maxInterval time.Duration, jitter float64) (Strategy, error) {
	var s Strategy
	switch strings.ToLower(name) {
	case "", "fixed":
		s = &Fixed{Delay: interval}
	case "exponential":
		s = &ExponentialBackoff{InitialDelay: interval, MaxDelay: maxInterval, Multiplier: 2}
	default:
		return nil, fmt.Errorf("unknown backoff %q", name)
	}
	if jitter > 0 {
		s = &Jittered{Strategy: s, Factor: jitter}
	}
	return s, nil
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	jitter := float64(delay) * jitterFactor
	randomJitter := (rand.Float64() - 0.5) * 2 * jitter
	finalDelay := float64(delay) + randomJitter

	if finalDelay < 0 {
		return 0
	}

	return time.Duration(finalDelay)
}
