package stream

import (
	"bytes"
	"errors"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func payload(n int) []byte {
	b := make([]byte, n)
	r := rand.New(rand.NewPCG(1, 2))
	for i := range b {
		b[i] = byte(r.IntN(256))
	}
	return b
}

type closeRecorder struct {
	io.Reader
	closed atomic.Bool
}

func (c *closeRecorder) Close() error {
	c.closed.Store(true)
	return nil
}

func TestFanout_AllReadersSeeEverything(t *testing.T) {
	data := payload(200_000)
	src := &closeRecorder{Reader: bytes.NewReader(data)}
	f := New(src, 3, WithChunkSize(4096), WithMaxBuffered(16*1024))

	var wg sync.WaitGroup
	got := make([][]byte, f.Len())
	for i, r := range f.Readers() {
		wg.Add(1)
		go func(i int, r *Reader) {
			defer wg.Done()
			b, err := io.ReadAll(r)
			assert.NoError(t, err)
			got[i] = b
			assert.NoError(t, r.Close())
		}(i, r)
	}
	wg.Wait()

	require.NoError(t, f.Wait())
	for i := range got {
		assert.Equal(t, data, got[i], "reader %d", i)
	}
	assert.True(t, src.closed.Load())
	assert.Equal(t, int64(len(data)), f.Total())
}

func TestFanout_KeepOpen(t *testing.T) {
	src := &closeRecorder{Reader: bytes.NewReader([]byte("abc"))}
	f := New(src, 1, KeepOpen())
	b, err := io.ReadAll(f.Reader(0))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
	require.NoError(t, f.Wait())
	assert.False(t, src.closed.Load())
}

func TestFanout_ClosedReaderDoesNotBlockOthers(t *testing.T) {
	data := payload(100_000)
	f := New(bytes.NewReader(data), 2, WithChunkSize(1024), WithMaxBuffered(2048))

	// Reader 1 never reads; closing it must release backpressure.
	require.NoError(t, f.Reader(1).Close())

	b, err := io.ReadAll(f.Reader(0))
	require.NoError(t, err)
	assert.Equal(t, data, b)
	require.NoError(t, f.Wait())

	_, err = f.Reader(1).Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFanout_Backpressure(t *testing.T) {
	data := payload(64 * 1024)
	f := New(bytes.NewReader(data), 2, WithChunkSize(1024), WithMaxBuffered(4096))

	buf := make([]byte, 1024)
	_, err := io.ReadFull(f.Reader(0), buf)
	require.NoError(t, err)

	// Reader 1 is idle, so the pump cannot run far ahead of it.
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, f.Total(), int64(4096+1024))

	go func() { _, _ = io.Copy(io.Discard, f.Reader(1)) }()
	rest, err := io.ReadAll(f.Reader(0))
	require.NoError(t, err)
	assert.Equal(t, data[1024:], rest)
	require.NoError(t, f.Wait())
}

func TestFanout_AllClosedStopsPump(t *testing.T) {
	pr, pw := io.Pipe()
	f := New(pr, 2)

	go func() { _, _ = pw.Write([]byte("partial")) }()
	buf := make([]byte, 7)
	_, err := io.ReadFull(f.Reader(0), buf)
	require.NoError(t, err)

	require.NoError(t, f.Reader(0).Close())
	require.NoError(t, f.Reader(1).Close())

	// The pump may be blocked in Read on the pipe; closing the writer side
	// after the stop is observed lets it return.
	_ = pw.Close()
	require.NoError(t, f.Wait())
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestFanout_SourceFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	f := New(&failingReader{data: []byte("head"), err: boom}, 2)

	for _, r := range f.Readers() {
		b, err := io.ReadAll(r)
		assert.Equal(t, "head", string(b))
		assert.ErrorIs(t, err, ErrStreamFailure)
		assert.ErrorIs(t, err, boom)
	}
	err := f.Wait()
	assert.ErrorIs(t, err, ErrStreamFailure)
}

func TestFanout_Cancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	f := New(pr, 2)

	cause := errors.New("writer failed")
	f.Cancel(cause)

	for _, r := range f.Readers() {
		_, err := r.Read(make([]byte, 8))
		assert.ErrorIs(t, err, ErrStreamFailure)
		assert.ErrorIs(t, err, cause)
	}
	assert.ErrorIs(t, f.Wait(), cause, "cancel closes the pipe so the pump returns")
}

func TestFanout_CancelAfterEOFIsNoop(t *testing.T) {
	f := New(bytes.NewReader([]byte("done")), 1)
	require.NoError(t, f.Wait())
	f.Cancel(errors.New("late"))

	b, err := io.ReadAll(f.Reader(0))
	require.NoError(t, err)
	assert.Equal(t, "done", string(b))
}

func TestJoined(t *testing.T) {
	f := New(bytes.NewReader([]byte("x")), 2)
	writerErr := errors.New("writer")

	var waited atomic.Bool
	j := Joined(f.Reader(1), func() error {
		waited.Store(true)
		return writerErr
	})
	_, _ = io.Copy(io.Discard, f.Reader(0))
	_ = f.Reader(0).Close()

	assert.ErrorIs(t, j.Close(), writerErr)
	assert.True(t, waited.Load())
	assert.ErrorIs(t, j.Close(), writerErr, "close is idempotent")
	require.NoError(t, f.Wait())
}

func TestNew_InvalidCount(t *testing.T) {
	assert.Panics(t, func() { New(bytes.NewReader(nil), 0) })
}
