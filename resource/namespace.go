package resource

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hupe1980/locus/internal/fs"
	"github.com/hupe1980/locus/internal/lock"
	"github.com/hupe1980/locus/roots"
)

// DefaultPackage is the package id used when none is given.
const DefaultPackage = "locus"

type options struct {
	roots    *roots.Registry
	libdir   string
	fs       fs.FileSystem
	logger   *slog.Logger
	locker   lock.Locker
	producer Producer
	home     string
	pwd      string
}

// Option configures a Namespace.
type Option func(*options)

// WithRoots sets the registry. The namespace uses it directly; paths copy it
// before changing it.
func WithRoots(r *roots.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.roots = r
		}
	}
}

// WithLibDir sets the {LIBDIR} value.
func WithLibDir(dir string) Option {
	return func(o *options) { o.libdir = dir }
}

// WithFileSystem sets the filesystem used for existence checks and reads.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
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

// WithLocker sets the lock used to serialize production.
func WithLocker(l lock.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithProducer sets the producer used for paths no claim matches.
func WithProducer(p Producer) Option {
	return func(o *options) { o.producer = p }
}

// WithHome overrides {HOME} and the "~/" prefix.
func WithHome(dir string) Option {
	return func(o *options) { o.home = dir }
}

// WithWorkDir overrides {PWD} and the "./" prefix.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.pwd = dir }
}

// Namespace groups paths that share a package id, roots and producers.
type Namespace struct {
	pkg      string
	roots    *roots.Registry
	libdir   string
	fs       fs.FileSystem
	logger   *slog.Logger
	locker   lock.Locker
	producer Producer
	claims   *Claims
	home     string
	pwd      string
}

// NewNamespace creates a namespace for the package id pkg.
func NewNamespace(pkg string, opts ...Option) *Namespace {
	if pkg == "" {
		pkg = DefaultPackage
	}
	o := options{
		fs:     fs.Default,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.roots == nil {
		o.roots = roots.New()
	}
	if o.locker == nil {
		o.locker = lock.New(filepath.Join(os.TempDir(), pkg, "locks"), lock.WithLogger(o.logger))
	}
	return &Namespace{
		pkg:      pkg,
		roots:    o.roots,
		libdir:   o.libdir,
		fs:       o.fs,
		logger:   o.logger,
		locker:   o.locker,
		producer: o.producer,
		claims:   NewClaims(),
		home:     o.home,
		pwd:      o.pwd,
	}
}

// Package returns the package id.
func (ns *Namespace) Package() string { return ns.pkg }

// Roots returns the shared registry.
func (ns *Namespace) Roots() *roots.Registry { return ns.roots }

// FileSystem returns the filesystem.
func (ns *Namespace) FileSystem() fs.FileSystem { return ns.fs }

// Logger returns the logger.
func (ns *Namespace) Logger() *slog.Logger { return ns.logger }

// Claims returns the claims registry.
func (ns *Namespace) Claims() *Claims { return ns.claims }

// Claim registers p as the producer for logical paths at or below prefix.
func (ns *Namespace) Claim(prefix string, p Producer) {
	ns.claims.Claim(prefix, p)
}

// Path returns the path for a logical or located string.
func (ns *Namespace) Path(raw string) *Path {
	return &Path{ns: ns, raw: raw, roots: ns.roots}
}

func (ns *Namespace) homeDir() string {
	if ns.home != "" {
		return ns.home
	}
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return os.Getenv("HOME")
}

func (ns *Namespace) workDir() string {
	if ns.pwd != "" {
		return ns.pwd
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
