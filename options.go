package locus

import (
	"github.com/hupe1980/locus/internal/fs"
	"github.com/hupe1980/locus/persist"
	"github.com/hupe1980/locus/resource"
	"github.com/hupe1980/locus/roots"
)

type options struct {
	pkg              string
	libDir           string
	roots            *roots.Registry
	rootsFile        string
	cacheDir         string
	lockDir          string
	home             string
	workDir          string
	fs               fs.FileSystem
	producer         resource.Producer
	memory           *persist.MemoryIndex
	metricsCollector MetricsCollector
	logger           *Logger
	bgWriters        int64
	ioLimit          int64
	maxBuffered      int64
}

// Option configures a Locus.
type Option func(*options)

// WithPackage sets the package directory substituted for {PKGDIR}.
// The default is "locus".
func WithPackage(pkg string) Option {
	return func(o *options) { o.pkg = pkg }
}

// WithLibDir sets the library root substituted for {LIBDIR}.
func WithLibDir(dir string) Option {
	return func(o *options) { o.libDir = dir }
}

// WithRoots uses r instead of the baseline roots. The registry is shared,
// so later changes to r are visible to the instance.
func WithRoots(r *roots.Registry) Option {
	return func(o *options) { o.roots = r }
}

// WithRootsFile loads a YAML or JSON root map on top of the roots.
// WatchRoots keeps it in sync afterwards.
func WithRootsFile(path string) Option {
	return func(o *options) { o.rootsFile = path }
}

// WithCacheDir sets the directory cached artifacts are stored in. By
// default it is the logical path var/cache/persistence, resolved through
// the roots.
func WithCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

// WithLockDir sets the directory for lock files. By default it is the
// logical path tmp/persist_locks.
func WithLockDir(dir string) Option {
	return func(o *options) { o.lockDir = dir }
}

// WithHome overrides the home directory used for {HOME} and "~/".
func WithHome(dir string) Option {
	return func(o *options) { o.home = dir }
}

// WithWorkDir overrides the working directory used for {PWD} and "./".
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

// WithFileSystem configures the filesystem used for all file access.
//
// If nil is passed, the local filesystem is used.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fs = fsys
	}
}

// WithProducer sets the fallback producer for paths no claim covers.
func WithProducer(p resource.Producer) Option {
	return func(o *options) { o.producer = p }
}

// WithMemoryIndex sets the index backing the persist.Memory type.
func WithMemoryIndex(idx *persist.MemoryIndex) Option {
	return func(o *options) { o.memory = idx }
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &locus.BasicMetricsCollector{}
//	l, _ := locus.New(locus.WithMetricsCollector(metrics))
//	// ... perform operations ...
//	stats := metrics.GetStats()
//	fmt.Printf("Hits: %d, Misses: %d\n", stats.Hits, stats.Misses)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging (uses NoopLogger).
//
// Example with JSON logging:
//
//	logger := locus.NewJSONLogger(slog.LevelInfo)
//	l, _ := locus.New(locus.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithBackgroundWriters bounds the number of concurrent stream writers.
func WithBackgroundWriters(n int64) Option {
	return func(o *options) { o.bgWriters = n }
}

// WithIOLimit caps background writer throughput in bytes per second.
// Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) { o.ioLimit = bytesPerSec }
}

// WithMaxBuffered bounds the bytes a stream tee holds for its slowest reader.
func WithMaxBuffered(n int64) Option {
	return func(o *options) { o.maxBuffered = n }
}
