package scheduler

import (
	"time"

	"github.com/smallbiznis/entitlements/internal/config"
)

// Config controls the scheduler interval and per-job timeout.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 24 * time.Hour,
		JobTimeout:  30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Scheduler.Enabled,
		RunInterval: cfg.Scheduler.Interval,
		JobTimeout:  cfg.Scheduler.JobTimeout,
	}.withDefaults()
}
