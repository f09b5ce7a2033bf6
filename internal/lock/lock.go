// Package lock provides named exclusive locks that hold across goroutines
// and, on unix, across processes.
//
// A key is mapped to a lock file under the manager's directory. Acquire first
// takes an in-process gate for the key and then an exclusive flock on the
// file, polling until it is free or the context ends. Lock files are left in
// place after release; removing them would race with a concurrent flock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/locus/internal/digest"
)

// ErrLockInterrupted is returned when the context ends before the lock is
// acquired. It is safe to retry.
var ErrLockInterrupted = errors.New("lock: acquisition interrupted")

// DefaultPollInterval is how often a contended file lock is retried.
const DefaultPollInterval = 25 * time.Millisecond

// Unlocker releases a held lock. Unlock may be called from any goroutine,
// which allows handing a lock to a background writer. Calls after the
// first are no-ops.
type Unlocker interface {
	Unlock() error
}

// Locker is the capability consumed by the resolver and the cache store.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlocker, error)
}

type options struct {
	poll   time.Duration
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*options)

// WithPollInterval sets the retry interval for contended file locks.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.poll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Manager hands out locks keyed by string.
type Manager struct {
	dir    string
	poll   time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	gates map[string]*gate
}

type gate struct {
	ch   chan struct{}
	refs int
}

// New returns a manager that keeps lock files in dir.
func New(dir string, opts ...Option) *Manager {
	o := options{
		poll:   DefaultPollInterval,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		dir:    dir,
		poll:   o.poll,
		logger: o.logger,
		gates:  make(map[string]*gate),
	}
}

// Dir returns the lock directory.
func (m *Manager) Dir() string { return m.dir }

// File returns the lock file used for key.
func (m *Manager) File(key string) string {
	return filepath.Join(m.dir, digest.Short(key, 32)+".lock")
}

// Acquire blocks until the lock for key is held or ctx ends.
func (m *Manager) Acquire(ctx context.Context, key string) (Unlocker, error) {
	g := m.ref(key)
	select {
	case g.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key)
		return nil, fmt.Errorf("%w: %s: %w", ErrLockInterrupted, key, ctx.Err())
	}

	f, err := m.lockFile(ctx, key)
	if err != nil {
		<-g.ch
		m.unref(key)
		return nil, err
	}

	m.logger.Debug("lock acquired", "key", key)
	return &held{m: m, key: key, g: g, f: f}, nil
}

// WithLock runs fn while holding the lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func() error) (err error) {
	u, err := m.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, u.Unlock())
	}()
	return fn()
}

func (m *Manager) lockFile(ctx context.Context, key string) (*os.File, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("lock: create dir: %w", err)
	}
	f, err := os.OpenFile(m.File(key), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock: open: %w", err)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		ok, err := tryLock(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("lock: %s: %w", key, err)
		}
		if ok {
			return f, nil
		}
		if timer == nil {
			m.logger.Debug("lock contended", "key", key, "file", f.Name())
			timer = time.NewTimer(m.poll)
		} else {
			timer.Reset(m.poll)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			_ = f.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrLockInterrupted, key, ctx.Err())
		}
	}
}

func (m *Manager) ref(key string) *gate {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gates[key]
	if !ok {
		g = &gate{ch: make(chan struct{}, 1)}
		m.gates[key] = g
	}
	g.refs++
	return g
}

func (m *Manager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.gates[key]
	g.refs--
	if g.refs == 0 {
		delete(m.gates, key)
	}
}

type held struct {
	m    *Manager
	key  string
	g    *gate
	f    *os.File
	once sync.Once
}

func (h *held) Unlock() error {
	var err error
	h.once.Do(func() {
		err = errors.Join(unlock(h.f), h.f.Close())
		<-h.g.ch
		h.m.unref(h.key)
		h.m.logger.Debug("lock released", "key", h.key)
	})
	return err
}
