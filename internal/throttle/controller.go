package throttle

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultMaxBackgroundWriters is used when Config leaves the limit at zero.
const DefaultMaxBackgroundWriters = 8

// Config holds limits.
type Config struct {
	// MaxBackgroundWriters is the maximum number of concurrent stream writers.
	// If 0, defaults to DefaultMaxBackgroundWriters.
	MaxBackgroundWriters int64

	// IOLimitBytesPerSec is the maximum write throughput of background writers.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller limits background concurrency and IO.
type Controller struct {
	cfg Config

	bgSem    *semaphore.Weighted
	inFlight atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWriters <= 0 {
		cfg.MaxBackgroundWriters = DefaultMaxBackgroundWriters
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWriters),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireBackground reserves a writer slot, blocking while all are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.bgSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.inFlight.Add(1)
	return nil
}

// TryAcquireBackground reserves a writer slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	if !c.bgSem.TryAcquire(1) {
		return false
	}
	c.inFlight.Add(1)
	return true
}

// ReleaseBackground releases a writer slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.inFlight.Add(-1)
	c.bgSem.Release(1)
}

// InFlight returns the number of held writer slots.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// AcquireIO waits until the IO limit allows n bytes. Requests larger than
// the bucket are split.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// TryAcquireIO takes IO tokens for n bytes without blocking.
func (c *Controller) TryAcquireIO(n int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), n)
}
