package locus

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/hupe1980/locus/config"
	"github.com/hupe1980/locus/internal/fs"
	"github.com/hupe1980/locus/internal/lock"
	"github.com/hupe1980/locus/internal/throttle"
	"github.com/hupe1980/locus/persist"
	"github.com/hupe1980/locus/resource"
	"github.com/hupe1980/locus/roots"
)

const (
	// DefaultCacheDir is the logical directory cached artifacts live in.
	DefaultCacheDir = "var/cache/persistence"
	// DefaultLockDir is the logical directory lock files live in.
	DefaultLockDir = "tmp/persist_locks"
)

// Locus ties a root registry, a resource namespace and a persistence store
// together under one package id.
type Locus struct {
	roots     *roots.Registry
	rootsFile string
	ns        *resource.Namespace
	store     *persist.Store
	locker    *lock.Manager

	logger  *Logger
	metrics MetricsCollector

	closed atomic.Bool
}

// New creates a Locus.
func New(opts ...Option) (*Locus, error) {
	o := options{
		pkg:              resource.DefaultPackage,
		fs:               fs.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	reg := o.roots
	if reg == nil {
		reg = roots.New()
	}
	if o.rootsFile != "" {
		if err := reg.LoadFile(o.rootsFile); err != nil {
			return nil, translateError(err)
		}
	}

	logger := o.logger.WithPackage(o.pkg)
	nsOpts := []resource.Option{
		resource.WithRoots(reg),
		resource.WithLibDir(o.libDir),
		resource.WithFileSystem(o.fs),
		resource.WithLogger(logger.Logger),
		resource.WithHome(o.home),
		resource.WithWorkDir(o.workDir),
	}
	if o.producer != nil {
		nsOpts = append(nsOpts, resource.WithProducer(o.producer))
	}

	// The lock and cache directories are logical paths resolved through the
	// same roots as every other resource.
	bootstrap := resource.NewNamespace(o.pkg, nsOpts...)
	lockDir := o.lockDir
	if lockDir == "" {
		lockDir = bootstrap.Path(DefaultLockDir).Find().String()
	}
	cacheDir := o.cacheDir
	if cacheDir == "" {
		cacheDir = bootstrap.Path(DefaultCacheDir).Find().String()
	}

	locker := lock.New(lockDir, lock.WithLogger(logger.Logger))
	ns := resource.NewNamespace(o.pkg, append(nsOpts, resource.WithLocker(locker))...)

	storeOpts := []persist.StoreOption{
		persist.WithFileSystem(o.fs),
		persist.WithLocker(locker),
		persist.WithLogger(logger.Logger),
		persist.WithMetrics(o.metricsCollector),
		persist.WithThrottle(throttle.NewController(throttle.Config{
			MaxBackgroundWriters: o.bgWriters,
			IOLimitBytesPerSec:   o.ioLimit,
		})),
		persist.WithMaxBuffered(o.maxBuffered),
		persist.WithMemory(o.memory),
	}

	return &Locus{
		roots:     reg,
		rootsFile: o.rootsFile,
		ns:        ns,
		store:     persist.New(cacheDir, storeOpts...),
		locker:    locker,
		logger:    logger,
		metrics:   o.metricsCollector,
	}, nil
}

// FromConfig creates a Locus from cfg. opts are applied after the
// configured settings and take precedence.
func FromConfig(cfg *config.Config, opts ...Option) (*Locus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := NewTextLogger(level)
	if cfg.Logging.Format == "json" {
		logger = NewJSONLogger(level)
	}

	reg := roots.New()
	for _, r := range cfg.Roots {
		if err := reg.Apply([]roots.Entry{{Name: r.Name, Value: r.Template}}); err != nil {
			return nil, translateError(err)
		}
	}

	base := []Option{
		WithPackage(cfg.Package),
		WithLibDir(cfg.LibDir),
		WithRoots(reg),
		WithRootsFile(cfg.RootsFile),
		WithCacheDir(cfg.Cache.Dir),
		WithLockDir(cfg.Cache.LockDir),
		WithBackgroundWriters(cfg.Cache.MaxBackgroundWriters),
		WithIOLimit(cfg.Cache.IOLimitBytesPerSec),
		WithMaxBuffered(cfg.Cache.MaxBuffered),
		WithLogger(logger),
	}
	if cfg.Cache.MaxMemoryEntries > 0 {
		base = append(base, WithMemoryIndex(persist.NewBoundedMemoryIndex(cfg.Cache.MaxMemoryEntries)))
	}
	return New(append(base, opts...)...)
}

// Roots returns the root registry.
func (l *Locus) Roots() *roots.Registry { return l.roots }

// Namespace returns the resource namespace.
func (l *Locus) Namespace() *resource.Namespace { return l.ns }

// Store returns the persistence store.
func (l *Locus) Store() *persist.Store { return l.store }

// Logger returns the logger.
func (l *Locus) Logger() *Logger { return l.logger }

// LockDir returns the directory holding lock files.
func (l *Locus) LockDir() string { return l.locker.Dir() }

// Path returns the resource path for raw.
func (l *Locus) Path(raw string) *resource.Path { return l.ns.Path(raw) }

// Claim registers p as the producer for logical paths under prefix.
func (l *Locus) Claim(prefix string, p resource.Producer) { l.ns.Claim(prefix, p) }

// Find resolves raw through the root where, or through every root in
// priority order when where is empty. roots.All picks the highest priority
// existing match; use Resolve to get all of them.
func (l *Locus) Find(ctx context.Context, raw, where string) (*resource.Path, error) {
	start := time.Now()
	p, err := l.Path(raw).FindIn(where)
	found := err == nil && p.Exists()
	l.metrics.RecordFind(time.Since(start), found)

	var concrete string
	if p != nil {
		concrete = p.String()
	}
	l.logger.LogFind(ctx, raw, concrete, where, err)
	return p, translateError(err)
}

// Resolve resolves raw through the root where. roots.All returns every
// existing expansion in priority order; any other root returns the single
// Find result.
func (l *Locus) Resolve(ctx context.Context, raw, where string) ([]*resource.Path, error) {
	start := time.Now()
	found, err := l.Path(raw).Resolve(where)
	l.metrics.RecordFind(time.Since(start), len(found) > 0 && found[0].Exists())

	var concrete string
	if len(found) > 0 {
		concrete = found[0].String()
	}
	l.logger.LogFind(ctx, raw, concrete, where, err)
	return found, translateError(err)
}

// FindAll returns every existing expansion of raw in priority order.
func (l *Locus) FindAll(raw string) []*resource.Path {
	return l.Path(raw).FindAll()
}

// Identify maps a concrete path back to its logical form.
func (l *Locus) Identify(located string) *resource.Path {
	return l.ns.Identify(located)
}

// Produce runs the producer for raw unless it was already tried, and
// returns the resolved path. A resource the producer cannot supply yields
// ErrNotFound.
func (l *Locus) Produce(ctx context.Context, raw string, force bool) (*resource.Path, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	p := l.Path(raw)
	start := time.Now()
	produced, err := p.Produce(ctx, force)
	l.metrics.RecordResourceProduce(time.Since(start), err)
	l.logger.LogProduce(ctx, raw, produced, err)
	if err != nil {
		return nil, translateError(err)
	}

	found := p.Find()
	if !found.Exists() {
		return found, translateError(resource.ErrNotFound)
	}
	return found, nil
}

// Open produces raw if needed and opens it, decompressing transparently.
func (l *Locus) Open(ctx context.Context, raw string) (io.ReadCloser, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	rc, err := l.Path(raw).Open(ctx)
	return rc, translateError(err)
}

// Persist memoizes fn under key. See persist.Store.Persist.
func (l *Locus) Persist(ctx context.Context, key string, typ persist.ValueType, fn persist.ProduceFunc, opts ...persist.Option) (*persist.Entry, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	entry, err := l.store.Persist(ctx, key, typ, fn, opts...)
	l.logger.LogPersist(ctx, key, typ, entry, err)
	return entry, translateError(err)
}

// WatchRoots reloads the roots file whenever it changes until ctx is done.
// It returns immediately when no roots file is configured.
func (l *Locus) WatchRoots(ctx context.Context) error {
	if l.rootsFile == "" {
		return nil
	}
	l.logger.LogRootsReload(ctx, l.rootsFile, nil)
	return roots.Watch(ctx, l.rootsFile, l.roots, l.logger.Logger)
}

// Close cancels running stream writers and waits for them to exit.
// It is safe to call Close more than once.
func (l *Locus) Close() error {
	if l == nil || !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.store.Close()
}
