package config

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration validation.
// Checked with errors.Is(); wrapped with context via fmt.Errorf("%w: ...").
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is empty or invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxHistory indicates max_history_messages is out of range.
	ErrInvalidMaxHistory = errors.New("invalid max history messages")

	// ErrInvalidRedisAddr indicates the Redis address is malformed.
	ErrInvalidRedisAddr = errors.New("invalid redis address")

	// ErrInvalidSessionTTL indicates the session TTL is out of range.
	ErrInvalidSessionTTL = errors.New("invalid session TTL")

	// ErrInvalidPort indicates the listen port is out of range.
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidRateLimit indicates the rate limiting settings are out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// Validate checks all configuration values, failing fast on the first error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}

	if c.MaxHistoryMessages < 1 || c.MaxHistoryMessages > MaxAllowedHistoryMessages {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidMaxHistory, MaxAllowedHistoryMessages, c.MaxHistoryMessages)
	}

	// RedisAddr may be empty: that disables the cache tier entirely and the
	// session store runs on its in-process fallback only.
	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("%w: db index must be between 0 and 15, got %d",
			ErrInvalidRedisAddr, c.RedisDB)
	}

	if c.SessionTTLMinutes < 1 {
		return fmt.Errorf("%w: must be at least 1 minute, got %d",
			ErrInvalidSessionTTL, c.SessionTTLMinutes)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPort, c.Port)
	}

	if c.RatePerSecond <= 0 {
		return fmt.Errorf("%w: rate_per_second must be positive, got %f",
			ErrInvalidRateLimit, c.RatePerSecond)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("%w: rate_burst must be at least 1, got %d",
			ErrInvalidRateLimit, c.RateBurst)
	}

	return nil
}
