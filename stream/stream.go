package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrStreamFailure wraps source failures and cancellations.
	ErrStreamFailure = errors.New("stream failure")

	// ErrClosed is returned by Read on a closed reader.
	ErrClosed = errors.New("stream: reader closed")
)

const (
	// DefaultMaxBuffered bounds the bytes held for the slowest reader.
	DefaultMaxBuffered = 16 << 20
	// DefaultChunkSize is the size of a single source read.
	DefaultChunkSize = 32 << 10
)

type options struct {
	maxBuffered int64
	chunkSize   int
	keepOpen    bool
}

// Option configures a Fanout.
type Option func(*options)

// WithMaxBuffered sets the buffer bound in bytes.
func WithMaxBuffered(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBuffered = n
		}
	}
}

// WithChunkSize sets the source read size.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// KeepOpen leaves the source open when the pump finishes.
func KeepOpen() Option {
	return func(o *options) { o.keepOpen = true }
}

// Fanout broadcasts one source to a fixed set of readers.
type Fanout struct {
	src       io.Reader
	opts      options
	closeOnce sync.Once

	mu   sync.Mutex
	cond *sync.Cond

	chunks [][]byte
	base   int64 // offset of chunks[0]
	total  int64 // bytes read from src

	readers []*Reader
	open    int

	// err is io.EOF after a clean end, or the failure every reader gets.
	err      error
	canceled bool
	stopped  bool

	done    chan struct{}
	pumpErr error
}

// New starts broadcasting src to n readers. n must be at least 1.
func New(src io.Reader, n int, opts ...Option) *Fanout {
	if n < 1 {
		panic(fmt.Sprintf("stream: invalid reader count %d", n))
	}
	o := options{maxBuffered: DefaultMaxBuffered, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}

	f := &Fanout{
		src:  src,
		opts: o,
		open: n,
		done: make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	f.readers = make([]*Reader, n)
	for i := range f.readers {
		f.readers[i] = &Reader{f: f}
	}

	go f.pump()
	return f
}

// Len returns the number of readers.
func (f *Fanout) Len() int { return len(f.readers) }

// Reader returns the i-th reader.
func (f *Fanout) Reader(i int) *Reader { return f.readers[i] }

// Readers returns all readers.
func (f *Fanout) Readers() []*Reader {
	out := make([]*Reader, len(f.readers))
	copy(out, f.readers)
	return out
}

// Cancel aborts every reader with cause wrapped in ErrStreamFailure and
// closes the source. It has no effect once the source has ended or failed.
func (f *Fanout) Cancel(cause error) {
	f.mu.Lock()
	if f.err != nil {
		f.mu.Unlock()
		return
	}
	if cause == nil {
		cause = errors.New("canceled")
	}
	f.err = fmt.Errorf("%w: %w", ErrStreamFailure, cause)
	f.canceled = true
	f.stopped = true
	f.cond.Broadcast()
	f.mu.Unlock()

	f.closeSource()
}

// Wait blocks until the pump has finished and returns its error. A clean
// end of stream, or a stop because every reader closed, returns nil.
func (f *Fanout) Wait() error {
	<-f.done
	return f.pumpErr
}

// Done is closed when the pump has finished.
func (f *Fanout) Done() <-chan struct{} { return f.done }

// Total returns the number of bytes read from the source so far.
func (f *Fanout) Total() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func (f *Fanout) pump() {
	defer close(f.done)
	defer f.closeSource()

	for {
		f.mu.Lock()
		for !f.stopped && f.total-f.minOffset() >= f.opts.maxBuffered {
			f.cond.Wait()
		}
		if f.stopped {
			if f.canceled {
				f.pumpErr = f.err
			}
			f.mu.Unlock()
			return
		}
		f.mu.Unlock()

		buf := make([]byte, f.opts.chunkSize)
		n, err := f.src.Read(buf)

		f.mu.Lock()
		if f.canceled {
			f.pumpErr = f.err
			f.mu.Unlock()
			return
		}
		if n > 0 {
			f.chunks = append(f.chunks, buf[:n])
			f.total += int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				f.err = io.EOF
			} else {
				f.err = fmt.Errorf("%w: %w", ErrStreamFailure, err)
				f.pumpErr = f.err
			}
			f.stopped = true
		}
		f.cond.Broadcast()
		stop := f.stopped
		f.mu.Unlock()
		if stop {
			return
		}
	}
}

func (f *Fanout) closeSource() {
	if f.opts.keepOpen {
		return
	}
	f.closeOnce.Do(func() {
		if c, ok := f.src.(io.Closer); ok {
			_ = c.Close()
		}
	})
}

// minOffset returns the lowest offset among open readers, or total if none
// are open. Callers hold f.mu.
func (f *Fanout) minOffset() int64 {
	minOff := f.total
	for _, r := range f.readers {
		if !r.closed && r.off < minOff {
			minOff = r.off
		}
	}
	return minOff
}

// trim drops chunks every open reader has consumed. Callers hold f.mu.
func (f *Fanout) trim() {
	minOff := f.minOffset()
	for len(f.chunks) > 0 && f.base+int64(len(f.chunks[0])) <= minOff {
		f.base += int64(len(f.chunks[0]))
		f.chunks[0] = nil
		f.chunks = f.chunks[1:]
	}
}

// Reader is one copy of the stream.
type Reader struct {
	f      *Fanout
	off    int64
	closed bool
}

// Read reads the next bytes of the stream.
func (r *Reader) Read(p []byte) (int, error) {
	f := r.f
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if r.closed {
			return 0, ErrClosed
		}
		if f.canceled {
			return 0, f.err
		}
		if r.off < f.total {
			if len(p) == 0 {
				return 0, nil
			}
			n := r.copyAt(p)
			r.off += int64(n)
			f.trim()
			f.cond.Broadcast()
			return n, nil
		}
		if f.err != nil {
			return 0, f.err
		}
		f.cond.Wait()
	}
}

// copyAt copies buffered bytes starting at r.off. Callers hold f.mu.
func (r *Reader) copyAt(p []byte) int {
	f := r.f
	pos := f.base
	n := 0
	for _, c := range f.chunks {
		end := pos + int64(len(c))
		if r.off+int64(n) >= end {
			pos = end
			continue
		}
		start := r.off + int64(n) - pos
		n += copy(p[n:], c[start:])
		if n == len(p) {
			break
		}
		pos = end
	}
	return n
}

// Close detaches the reader. Once every reader is closed the pump stops.
func (r *Reader) Close() error {
	f := r.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	f.open--
	if f.open == 0 {
		f.stopped = true
	}
	f.trim()
	f.cond.Broadcast()
	return nil
}

// Joined returns a ReadCloser over r whose Close first closes r and then
// waits for wait, returning its error. It ties a consumer copy to the
// lifetime of another goroutine, such as the writer persisting copy 0.
func Joined(r io.ReadCloser, wait func() error) io.ReadCloser {
	return &joined{ReadCloser: r, wait: wait}
}

type joined struct {
	io.ReadCloser
	wait func() error
	once sync.Once
	err  error
}

func (j *joined) Close() error {
	j.once.Do(func() {
		j.err = errors.Join(j.ReadCloser.Close(), j.wait())
	})
	return j.err
}
