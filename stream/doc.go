// Package stream duplicates a single byte stream into several synchronized
// readers.
//
// New starts a pump that reads the source in chunks into a shared buffer.
// Every reader sees the full byte sequence. The buffer is bounded: when the
// slowest open reader falls MaxBuffered bytes behind, the pump waits.
// Closing a reader detaches it so it no longer holds the others back. When
// every reader is closed the pump stops and the source is closed.
//
//	f := stream.New(src, 2)
//	go io.Copy(file, f.Reader(0))
//	io.Copy(os.Stdout, f.Reader(1))
//
// A source read error other than io.EOF is wrapped in ErrStreamFailure and
// delivered to every reader after the data read so far. Cancel aborts all
// readers immediately.
package stream
