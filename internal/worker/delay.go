package worker

import (
	"context"
	"fmt"
	"time"
)

const defaultDelay = 3 * time.Second

// DelayConfig is the configuration for the delay task.
type DelayConfig struct {
	Delay time.Duration
	Sleep SleepFunc
}

func (c *DelayConfig) defaults() error {
	if c.Delay < 0 {
		return fmt.Errorf("delay can't be negative")
	}
	if c.Delay == 0 {
		c.Delay = defaultDelay
	}

	if c.Sleep == nil {
		c.Sleep = Sleep
	}

	return nil
}

// Delay is a task that waits and finishes, it only reports once it's done.
type Delay struct {
	delay time.Duration
	sleep SleepFunc
}

// NewDelay returns a new delay task.
func NewDelay(cfg DelayConfig) (*Delay, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Delay{delay: cfg.Delay, sleep: cfg.Sleep}, nil
}

func (d *Delay) Run(ctx context.Context, id string, sink ProgressSink) error {
	if err := d.sleep(ctx, d.delay); err != nil {
		return fmt.Errorf("delay %s interrupted: %w", id, err)
	}

	return sink.Report(ctx, 0)
}
