package scheduler

import (
	"time"

	"github.com/smallbiznis/partnersync/internal/config"
)

// Config controls the processing loop.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	// JobTimeout bounds one batch. It defaults to the processor lock TTL so
	// the distributed lock cannot lapse while a batch is still running.
	JobTimeout time.Duration
	Enabled    bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   10,
		JobTimeout:  2 * time.Minute,
		Enabled:     true,
	}
}

// ProvideConfig derives the scheduler config from the processor settings.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Processor.RunInterval,
		BatchSize:   cfg.Processor.BatchSize,
		JobTimeout:  cfg.Processor.LockTTL,
		Enabled:     cfg.Processor.SchedulerEnabled,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
