package session

import (
	"math"
	"math/rand"
	"time"
)

// NextBackoffDelay returns the wait before dial attempt N (1-based). The first
// retry waits InitialDelay; later ones grow by Multiplier up to MaxDelay.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || cfg.InitialDelay <= 0 {
		return max(cfg.InitialDelay, 0)
	}
	mult := max(cfg.Multiplier, 1.0)
	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 {
		delay = math.Min(delay, float64(cfg.MaxDelay))
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}
