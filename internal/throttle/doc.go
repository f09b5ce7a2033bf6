// Package throttle governs background cache writers.
//
// A Controller bounds how many stream writers drain to disk at once and can
// rate limit their IO with a token bucket:
//
//	c := throttle.NewController(throttle.Config{
//	    MaxBackgroundWriters: 4,
//	    IOLimitBytesPerSec:   64 << 20,
//	})
//
//	if err := c.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer c.ReleaseBackground()
//
//	w := throttle.NewRateLimitedWriter(ctx, file, c)
//
// All methods are safe for concurrent use and a nil Controller is a no-op.
package throttle
