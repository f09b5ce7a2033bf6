package throttle

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Background(t *testing.T) {
	c := NewController(Config{MaxBackgroundWriters: 2})

	require.NoError(t, c.AcquireBackground(t.Context()))
	require.NoError(t, c.AcquireBackground(t.Context()))
	assert.Equal(t, int64(2), c.InFlight())

	assert.False(t, c.TryAcquireBackground())

	c.ReleaseBackground()
	assert.True(t, c.TryAcquireBackground())
	assert.Equal(t, int64(2), c.InFlight())
}

func TestController_BackgroundCancel(t *testing.T) {
	c := NewController(Config{MaxBackgroundWriters: 1})
	require.NoError(t, c.AcquireBackground(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireBackground(ctx), context.DeadlineExceeded)
	assert.Equal(t, int64(1), c.InFlight())
}

func TestController_Defaults(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, int64(DefaultMaxBackgroundWriters), c.Config().MaxBackgroundWriters)
	assert.True(t, c.TryAcquireIO(1<<30), "no IO limit by default")
}

func TestController_NilIsNoop(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireBackground(t.Context()))
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()
	require.NoError(t, c.AcquireIO(t.Context(), 1<<20))
	assert.Zero(t, c.InFlight())
}

func TestRateLimitedWriter_SplitsLargeWrites(t *testing.T) {
	// Burst is 1 KiB, so a 3 KiB write needs several buckets but must not fail.
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	c.ioLimiter.SetBurst(1024)

	var buf bytes.Buffer
	w := NewRateLimitedWriter(t.Context(), &buf, c)
	n, err := w.Write(make([]byte, 3*1024))
	require.NoError(t, err)
	assert.Equal(t, 3*1024, n)
	assert.Equal(t, int64(3*1024), w.Written())
}

func TestRateLimitedWriter_Cancelled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	w := NewRateLimitedWriter(ctx, &bytes.Buffer{}, c)
	_, err := w.Write([]byte("xx"))
	assert.Error(t, err)
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	r := NewRateLimitedReader(t.Context(), bytes.NewReader([]byte("payload")), c)
	buf := make([]byte, 64)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))
}
