package session

import "time"

// BackoffConfig defines dial retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines link establishment limits.
type Config struct {
	ConnectTimeout     time.Duration
	HandshakeTimeout   time.Duration
	// MaxConnectAttempts of 0 retries until the context ends.
	MaxConnectAttempts int
	Backoff            BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:     5 * time.Second,
		HandshakeTimeout:   5 * time.Second,
		MaxConnectAttempts: 5,
		Backoff: BackoffConfig{
			InitialDelay: 100 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     2 * time.Second,
			Jitter:       true,
		},
	}
}
