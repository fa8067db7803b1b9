package worker

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultCountdownSteps    = 10
	defaultCountdownInterval = time.Second
)

// CountdownConfig is the configuration for the countdown task.
type CountdownConfig struct {
	// Steps is where the countdown starts, it will report Steps+1 times (Steps..0).
	Steps int
	// Interval is the wait before every report.
	Interval time.Duration
	// Sleep is used to wait, by default real time is used.
	Sleep SleepFunc
}

func (c *CountdownConfig) defaults() error {
	if c.Steps < 0 {
		return fmt.Errorf("steps can't be negative")
	}
	if c.Steps == 0 {
		c.Steps = defaultCountdownSteps
	}

	if c.Interval < 0 {
		return fmt.Errorf("interval can't be negative")
	}
	if c.Interval == 0 {
		c.Interval = defaultCountdownInterval
	}

	if c.Sleep == nil {
		c.Sleep = Sleep
	}

	return nil
}

// Countdown is a task that counts down from a number of steps to 0, reporting
// the remaining steps after each interval.
type Countdown struct {
	steps    int
	interval time.Duration
	sleep    SleepFunc
}

// NewCountdown returns a new countdown task.
func NewCountdown(cfg CountdownConfig) (*Countdown, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Countdown{
		steps:    cfg.Steps,
		interval: cfg.Interval,
		sleep:    cfg.Sleep,
	}, nil
}

// Interval returns the wait between reports.
func (c *Countdown) Interval() time.Duration { return c.interval }

func (c *Countdown) Run(ctx context.Context, id string, sink ProgressSink) error {
	for i := c.steps; i >= 0; i-- {
		if err := c.sleep(ctx, c.interval); err != nil {
			return fmt.Errorf("countdown %s interrupted at %d: %w", id, i, err)
		}

		if err := sink.Report(ctx, i); err != nil {
			return fmt.Errorf("countdown %s could not report %d: %w", id, i, err)
		}
	}

	return nil
}
