package persist

import (
	"log/slog"
	"time"

	"github.com/hupe1980/locus/internal/fs"
	"github.com/hupe1980/locus/internal/lock"
	"github.com/hupe1980/locus/internal/throttle"
)

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	fs          fs.FileSystem
	locker      lock.Locker
	lockDir     string
	logger      *slog.Logger
	metrics     MetricsObserver
	throttle    *throttle.Controller
	memory      *MemoryIndex
	maxBuffered int64
}

// WithFileSystem sets the filesystem artifacts are stored on.
func WithFileSystem(fsys fs.FileSystem) StoreOption {
	return func(o *storeOptions) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithLocker sets the lock manager guarding stable paths.
func WithLocker(l lock.Locker) StoreOption {
	return func(o *storeOptions) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithLockDir sets where the default lock manager keeps its lock files.
// It has no effect together with WithLocker.
func WithLockDir(dir string) StoreOption {
	return func(o *storeOptions) { o.lockDir = dir }
}

// WithLogger sets the logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics observer.
func WithMetrics(m MetricsObserver) StoreOption {
	return func(o *storeOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithThrottle bounds background stream writers.
func WithThrottle(c *throttle.Controller) StoreOption {
	return func(o *storeOptions) { o.throttle = c }
}

// WithMemory sets the index used for the Memory type.
func WithMemory(idx *MemoryIndex) StoreOption {
	return func(o *storeOptions) {
		if idx != nil {
			o.memory = idx
		}
	}
}

// WithMaxBuffered bounds the bytes a stream tee holds for its slowest reader.
func WithMaxBuffered(n int64) StoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.maxBuffered = n
		}
	}
}

// Option configures a single Persist call.
type Option func(*options)

type options struct {
	path      string
	dir       string
	params    map[string]any
	update    bool
	olderThan time.Time
	refPath   string
	noLoad    bool
	canFail   bool
	reload    bool
	teeCopies int
	memory    *MemoryIndex
	disabled  bool
}

// WithPath uses path as the stable path instead of deriving it from the key.
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithDir derives the stable path under dir instead of the store directory.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithOptions records the parameters the artifact depends on. Non-nil
// entries are digested into the filename.
func WithOptions(params map[string]any) Option {
	return func(o *options) { o.params = params }
}

// WithUpdate recomputes the artifact even when it exists.
func WithUpdate() Option {
	return func(o *options) { o.update = true }
}

// WithUpdateIfOlder recomputes an artifact last modified before t.
func WithUpdateIfOlder(t time.Time) Option {
	return func(o *options) { o.olderThan = t }
}

// WithUpdateIfOlderThan recomputes an artifact older than the file at path.
func WithUpdateIfOlderThan(path string) Option {
	return func(o *options) { o.refPath = path }
}

// WithNoLoad returns the entry without loading the artifact.
func WithNoLoad() Option {
	return func(o *options) { o.noLoad = true }
}

// WithCanFail turns production failures into an empty entry.
func WithCanFail() Option {
	return func(o *options) { o.canFail = true }
}

// WithReload returns the freshly stored value as loaded back from disk.
func WithReload() Option {
	return func(o *options) { o.reload = true }
}

// WithTeeCopies sets how many consumer copies of a stream result are
// returned. The first is Entry.Stream and the rest are Entry.Copies. The
// default is one.
func WithTeeCopies(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.teeCopies = n
		}
	}
}

// WithMemoryIndex overrides the store's index for a Memory call.
func WithMemoryIndex(idx *MemoryIndex) Option {
	return func(o *options) { o.memory = idx }
}

// Disabled calls the producer directly, without a lock or cache.
func Disabled() Option {
	return func(o *options) { o.disabled = true }
}
