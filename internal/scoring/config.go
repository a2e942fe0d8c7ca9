// internal/scoring/config.go
package scoring

import (
	"time"

	"loan-manager/internal/common/config"
)

// Config holds the scoring service endpoint and the polling protocol settings.
type Config struct {
	BaseURL     string
	ClientToken string
	Timeout     time.Duration

	MaxAttempts       int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	Deadline          time.Duration // 0 disables the overall deadline

	MockEnabled    bool
	RateLimitRPS   float64
	RateLimitBurst int
}

// FromAppConfig maps the scoring section of the application config.
func FromAppConfig(c config.ScoringConfig) *Config {
	return &Config{
		BaseURL:           c.BaseURL,
		ClientToken:       c.ClientToken,
		Timeout:           config.GetDuration(c.Timeout),
		MaxAttempts:       c.MaxAttempts,
		RetryDelay:        config.GetDuration(c.RetryDelay),
		BackoffMultiplier: c.BackoffMultiplier,
		MaxDelay:          config.GetDuration(c.MaxDelay),
		Deadline:          config.GetDuration(c.Deadline),
		MockEnabled:       c.MockEnabled,
		RateLimitRPS:      c.RateLimitRPS,
		RateLimitBurst:    c.RateLimitBurst,
	}
}

// delayFor returns the wait after the given 1-based attempt.
func (c *Config) delayFor(attempt int) time.Duration {
	d := c.RetryDelay
	if c.BackoffMultiplier > 1 {
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * c.BackoffMultiplier)
			if c.MaxDelay > 0 && d >= c.MaxDelay {
				return c.MaxDelay
			}
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}
