package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/locus/internal/digest"
	"github.com/hupe1980/locus/internal/fs"
	"github.com/hupe1980/locus/internal/lock"
	"github.com/hupe1980/locus/internal/throttle"
	"github.com/hupe1980/locus/stream"
)

// ErrStoreClosed is returned by calls on a closed Store and is the cause
// given to streams cancelled by Close.
var ErrStoreClosed = errors.New("persist: store closed")

// ProduceFunc computes the value for a key. path is the stable path the
// artifact will live at; the producer may write it directly and return None.
type ProduceFunc func(ctx context.Context, path string) (Result, error)

// Store maps keys to artifacts under a directory.
type Store struct {
	dir         string
	fs          fs.FileSystem
	locker      lock.Locker
	logger      *slog.Logger
	metrics     MetricsObserver
	throttle    *throttle.Controller
	memory      *MemoryIndex
	maxBuffered int64

	ctx    context.Context
	cancel context.CancelCauseFunc
	wg     sync.WaitGroup
}

// New creates a store keeping its artifacts under dir.
func New(dir string, opts ...StoreOption) *Store {
	o := storeOptions{
		fs:          fs.Default,
		logger:      slog.New(slog.DiscardHandler),
		metrics:     NoopMetrics{},
		memory:      defaultMemory,
		maxBuffered: stream.DefaultMaxBuffered,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		lockDir := o.lockDir
		if lockDir == "" {
			lockDir = filepath.Join(os.TempDir(), "locus", "persist_locks")
		}
		o.locker = lock.New(lockDir, lock.WithLogger(o.logger))
	}
	if o.throttle == nil {
		o.throttle = throttle.NewController(throttle.Config{})
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	return &Store{
		dir:         dir,
		fs:          o.fs,
		locker:      o.locker,
		logger:      o.logger,
		metrics:     o.metrics,
		throttle:    o.throttle,
		memory:      o.memory,
		maxBuffered: o.maxBuffered,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Dir returns the directory stable paths are derived under.
func (s *Store) Dir() string { return s.dir }

// FileSystem returns the filesystem artifacts are stored on.
func (s *Store) FileSystem() fs.FileSystem { return s.fs }

// Memory returns the store's memory index.
func (s *Store) Memory() *MemoryIndex { return s.memory }

// Path returns the stable path for key under opts.
func (s *Store) Path(key string, opts ...Option) string {
	o := newOptions(opts)
	return s.stablePath(key, &o)
}

func newOptions(opts []Option) options {
	o := options{teeCopies: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (s *Store) stablePath(key string, o *options) string {
	if o.path != "" {
		return o.path
	}
	dir := s.dir
	if o.dir != "" {
		dir = o.dir
	}
	return filepath.Join(dir, digest.Filename(key, o.params))
}

// Persist returns the artifact for key, producing it with fn when it is
// missing or stale.
//
// The stable path is locked for the whole check, produce and store section.
// For stream results the lock passes to the background writer and is released
// once the artifact is in place.
func (s *Store) Persist(ctx context.Context, key string, typ ValueType, fn ProduceFunc, opts ...Option) (*Entry, error) {
	o := newOptions(opts)
	if o.disabled {
		return s.direct(ctx, key, typ, fn, &o)
	}
	if s.ctx.Err() != nil {
		return nil, ErrStoreClosed
	}
	if typ != Untyped && typ != Memory {
		if _, ok := SerializerFor(typ); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
		}
	}

	path := s.stablePath(key, &o)
	if typ == Memory {
		return s.persistMemory(ctx, key, path, fn, &o)
	}

	unlock, err := s.locker.Acquire(ctx, path)
	if err != nil {
		return nil, err
	}
	owned := true
	defer func() {
		if owned {
			s.unlock(unlock, path)
		}
	}()

	entry := &Entry{Key: key, Path: path, Type: typ}
	if fs.Exists(s.fs, path) {
		if !s.stale(path, &o) {
			s.metrics.RecordHit(key)
			entry.Cached = true
			if o.noLoad || typ == Untyped {
				return entry, nil
			}
			v, err := s.load(typ, path)
			if err == nil {
				entry.Value = v
				return entry, nil
			}
			entry.Cached = false
			s.logger.Warn("persist: discarding unreadable artifact", "path", path, "error", err)
		}
		if err := fs.RemoveIfExists(s.fs, path); err != nil {
			return nil, err
		}
	}
	s.metrics.RecordMiss(key)

	start := time.Now()
	res, err := fn(ctx, path)
	s.metrics.RecordProduce(time.Since(start), err)
	if err != nil {
		return s.fail(entry, err, &o)
	}

	switch res.kind {
	case kindTransient:
		entry.Value = res.value
		return entry, nil

	case kindDiscard:
		if err := fs.RemoveIfExists(s.fs, path); err != nil {
			return nil, err
		}
		return &Entry{Key: key, Type: typ}, nil

	case kindStream:
		s.persistStream(entry, res, &o, unlock)
		owned = false
		return entry, nil

	case kindValue:
		if typ == Untyped {
			return s.fail(entry, &SerializationError{Type: typ, Path: path, Err: ErrUnknownType}, &o)
		}
		if err := s.save(entry, res.value); err != nil {
			return s.fail(entry, err, &o)
		}
		entry.Value = res.value
		if o.reload {
			v, err := s.load(typ, entry.Path)
			if err != nil {
				return s.fail(entry, err, &o)
			}
			entry.Value = v
		}
		return entry, nil

	default:
		if o.noLoad {
			return entry, nil
		}
		if !fs.Exists(s.fs, path) {
			if typ == Untyped {
				return &Entry{Key: key, Type: typ}, nil
			}
			return s.fail(entry, &SerializationError{Type: typ, Path: path, Err: ErrNoArtifact}, &o)
		}
		if typ == Untyped {
			return entry, nil
		}
		v, err := s.load(typ, path)
		if err != nil {
			return s.fail(entry, err, &o)
		}
		entry.Value = v
		return entry, nil
	}
}

// Forget removes the artifact and memory entry for key.
func (s *Store) Forget(ctx context.Context, key string, opts ...Option) error {
	o := newOptions(opts)
	path := s.stablePath(key, &o)
	s.memory.Forget(path)
	if o.memory != nil {
		o.memory.Forget(path)
	}

	unlock, err := s.locker.Acquire(ctx, path)
	if err != nil {
		return err
	}
	defer s.unlock(unlock, path)
	return fs.RemoveIfExists(s.fs, path)
}

// Wait blocks until every background stream writer has finished.
func (s *Store) Wait() { s.wg.Wait() }

// Close cancels running stream writers and waits for them. Their streams
// fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.cancel(ErrStoreClosed)
	s.wg.Wait()
	return nil
}

func (s *Store) unlock(u lock.Unlocker, path string) {
	if err := u.Unlock(); err != nil {
		s.logger.Warn("persist: unlock failed", "path", path, "error", err)
	}
}

func (s *Store) stale(path string, o *options) bool {
	if o.update {
		return true
	}
	if o.olderThan.IsZero() && o.refPath == "" {
		return false
	}
	mt, ok := fs.ModTime(s.fs, path)
	if !ok {
		return true
	}
	if !o.olderThan.IsZero() && mt.Before(o.olderThan) {
		return true
	}
	if o.refPath != "" {
		if ref, ok := fs.ModTime(s.fs, o.refPath); ok && mt.Before(ref) {
			return true
		}
	}
	return false
}

func (s *Store) save(entry *Entry, v any) error {
	ser, _ := SerializerFor(entry.Type)
	out, err := ser.Save(s.fs, v, entry.Path)
	if err != nil {
		return &SerializationError{Type: entry.Type, Path: entry.Path, Err: err}
	}
	if out != "" {
		entry.Path = out
	}
	return nil
}

func (s *Store) load(typ ValueType, path string) (any, error) {
	ser, ok := SerializerFor(typ)
	if !ok {
		return nil, &SerializationError{Type: typ, Path: path, Err: ErrUnknownType}
	}
	v, err := ser.Load(s.fs, path)
	if err != nil {
		return nil, &SerializationError{Type: typ, Path: path, Err: err}
	}
	return v, nil
}

// fail removes whatever the failed run left at the stable path.
func (s *Store) fail(entry *Entry, err error, o *options) (*Entry, error) {
	if rerr := fs.RemoveIfExists(s.fs, entry.Path); rerr != nil {
		s.logger.Warn("persist: cleanup failed", "path", entry.Path, "error", rerr)
	}
	s.logger.Warn("persist: production failed", "key", entry.Key, "path", entry.Path, "error", err)
	if o.canFail {
		return &Entry{Key: entry.Key, Type: entry.Type}, nil
	}
	return nil, fmt.Errorf("persist %s: %w", entry.Key, err)
}

func (s *Store) persistMemory(ctx context.Context, key, path string, fn ProduceFunc, o *options) (*Entry, error) {
	idx := s.memory
	if o.memory != nil {
		idx = o.memory
	}
	produce := func() (any, bool, error) {
		start := time.Now()
		res, err := fn(ctx, path)
		s.metrics.RecordProduce(time.Since(start), err)
		if err != nil {
			return nil, false, err
		}
		switch res.kind {
		case kindValue, kindNone:
			return res.value, true, nil
		case kindStream:
			data, err := drain(res)
			return data, err == nil, err
		default:
			return res.value, false, nil
		}
	}

	var (
		v      any
		cached bool
		err    error
	)
	if o.update {
		v, err = idx.Refresh(path, produce)
	} else {
		v, cached, err = idx.Do(path, produce)
	}
	if err != nil {
		s.logger.Warn("persist: production failed", "key", key, "error", err)
		if o.canFail {
			return &Entry{Key: key, Type: Memory}, nil
		}
		return nil, fmt.Errorf("persist %s: %w", key, err)
	}

	if cached {
		s.metrics.RecordHit(key)
	} else {
		s.metrics.RecordMiss(key)
	}
	return &Entry{Key: key, Path: path, Type: Memory, Value: v, Cached: cached}, nil
}

// direct runs fn without caching. Stream results are still teed when more
// than one copy is requested.
func (s *Store) direct(ctx context.Context, key string, typ ValueType, fn ProduceFunc, o *options) (*Entry, error) {
	entry := &Entry{Key: key, Type: typ}
	res, err := fn(ctx, "")
	if err != nil {
		if o.canFail {
			s.logger.Warn("persist: production failed", "key", key, "error", err)
			return entry, nil
		}
		return nil, fmt.Errorf("persist %s: %w", key, err)
	}

	switch res.kind {
	case kindValue, kindTransient:
		entry.Value = res.value
	case kindStream:
		if o.teeCopies <= 1 {
			entry.Stream = readCloser(res)
			break
		}
		fan := stream.New(res.stream, o.teeCopies, s.streamOptions(res)...)
		readers := fan.Readers()
		entry.Stream = readers[0]
		for _, r := range readers[1:] {
			entry.Copies = append(entry.Copies, r)
		}
	}
	return entry, nil
}

func (s *Store) streamOptions(res Result) []stream.Option {
	opts := []stream.Option{stream.WithMaxBuffered(s.maxBuffered)}
	if res.keepOpen {
		opts = append(opts, stream.KeepOpen())
	}
	return opts
}

// persistStream tees the result to a background writer holding the lock and
// to the caller's copies.
func (s *Store) persistStream(entry *Entry, res Result, o *options, unlock lock.Unlocker) {
	fan := stream.New(res.stream, o.teeCopies+1, s.streamOptions(res)...)
	readers := fan.Readers()

	done := make(chan struct{})
	var werr error
	wait := func() error {
		<-done
		return werr
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		werr = s.writeStream(entry, fan, readers[0])
		s.unlock(unlock, entry.Path)
	}()

	entry.Stream = stream.Joined(readers[1], wait)
	for _, r := range readers[2:] {
		entry.Copies = append(entry.Copies, stream.Joined(r, wait))
	}
}

func (s *Store) writeStream(entry *Entry, fan *stream.Fanout, r *stream.Reader) (err error) {
	var n int64
	defer func() { s.metrics.RecordStream(n, err) }()
	defer r.Close()

	stop := context.AfterFunc(s.ctx, func() { fan.Cancel(context.Cause(s.ctx)) })
	defer stop()

	if err = s.throttle.AcquireBackground(s.ctx); err != nil {
		return err
	}
	defer s.throttle.ReleaseBackground()

	n, err = fs.WriteAtomic(s.fs, entry.Path, throttle.NewRateLimitedReader(s.ctx, r, s.throttle))
	if err == nil {
		err = fan.Wait()
	}
	if err != nil {
		if rerr := fs.RemoveIfExists(s.fs, entry.Path); rerr != nil {
			s.logger.Warn("persist: cleanup failed", "path", entry.Path, "error", rerr)
		}
		s.logger.Warn("persist: stream write failed", "key", entry.Key, "path", entry.Path, "error", err)
		return err
	}
	s.logger.Debug("persist: stream stored", "path", entry.Path, "bytes", n)
	return nil
}

func drain(res Result) ([]byte, error) {
	data, err := io.ReadAll(res.stream)
	if c, ok := res.stream.(io.Closer); ok && !res.keepOpen {
		err = errors.Join(err, c.Close())
	}
	return data, err
}

func readCloser(res Result) io.ReadCloser {
	if rc, ok := res.stream.(io.ReadCloser); ok && !res.keepOpen {
		return rc
	}
	return io.NopCloser(res.stream)
}
