package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_Exclusive(t *testing.T) {
	m := New(t.TempDir(), WithPollInterval(time.Millisecond))
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(ctx, "key", func() error {
				n := inside.Add(1)
				for {
					cur := maxInside.Load()
					if n <= cur || maxInside.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Empty(t, m.gates, "gates are dropped once unused")
}

func TestAcquire_IndependentKeys(t *testing.T) {
	m := New(t.TempDir())
	ctx := context.Background()

	a, err := m.Acquire(ctx, "a")
	require.NoError(t, err)
	b, err := m.Acquire(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, a.Unlock())
	require.NoError(t, b.Unlock())
}

func TestAcquire_ContextCancel(t *testing.T) {
	m := New(t.TempDir())
	held, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "k")
	require.ErrorIs(t, err, ErrLockInterrupted)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAcquire_CrossManager(t *testing.T) {
	// Two managers share nothing in memory, so only the file lock excludes them.
	dir := t.TempDir()
	m1 := New(dir, WithPollInterval(time.Millisecond))
	m2 := New(dir, WithPollInterval(time.Millisecond))

	u, err := m1.Acquire(context.Background(), "shared")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	_, err = m2.Acquire(ctx, "shared")
	cancel()
	require.ErrorIs(t, err, ErrLockInterrupted)

	acquired := make(chan struct{})
	go func() {
		u2, err := m2.Acquire(context.Background(), "shared")
		if assert.NoError(t, err) {
			close(acquired)
			_ = u2.Unlock()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second manager acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, u.Unlock())
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second manager never acquired the lock")
	}
}

func TestUnlock_Idempotent_AndHandOff(t *testing.T) {
	m := New(t.TempDir())
	u, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- u.Unlock() }()
	require.NoError(t, <-done)
	assert.NoError(t, u.Unlock())

	_, statErr := os.Stat(m.File("k"))
	assert.NoError(t, statErr, "lock file is kept")
}

func TestWithLock_ReturnsFnError(t *testing.T) {
	m := New(t.TempDir())
	boom := errors.New("boom")
	err := m.WithLock(context.Background(), "k", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// The lock is free again.
	require.NoError(t, m.WithLock(context.Background(), "k", func() error { return nil }))
}

func TestFile_Deterministic(t *testing.T) {
	m := New("/locks")
	assert.Equal(t, m.File("/a/b"), m.File("/a/b"))
	assert.NotEqual(t, m.File("/a/b"), m.File("/a/c"))
	assert.Equal(t, "/locks", m.Dir())
}
