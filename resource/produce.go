package resource

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/locus/internal/fs"
)

// ProducedState tracks production of a Path instance.
type ProducedState int

const (
	// Untried means production has not been attempted.
	Untried ProducedState = iota
	// Done means production finished. The resource may still be absent if
	// the producer reported ErrNotFound.
	Done
	// Failed means the producer returned an error, which is kept.
	Failed
)

func (s ProducedState) String() string {
	switch s {
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "untried"
	}
}

// Producer materializes a missing resource at target.
//
// It returns whether anything was materialized. Returning an error that
// wraps ErrNotFound means the producer cannot supply the resource.
type Producer interface {
	Produce(ctx context.Context, p *Path, target string) (bool, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context, p *Path, target string) (bool, error)

// Produce calls f.
func (f ProducerFunc) Produce(ctx context.Context, p *Path, target string) (bool, error) {
	return f(ctx, p, target)
}

// Content returns a producer that writes data to the target atomically.
func Content(data []byte) Producer {
	return ProducerFunc(func(_ context.Context, p *Path, target string) (bool, error) {
		if _, err := fs.WriteAtomic(p.ns.fs, target, bytes.NewReader(data)); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Claims maps logical paths or prefixes to producers.
type Claims struct {
	mu      sync.RWMutex
	entries map[string]Producer
}

// NewClaims returns an empty registry.
func NewClaims() *Claims {
	return &Claims{entries: make(map[string]Producer)}
}

// Claim registers p for logical paths equal to prefix or below it.
func (c *Claims) Claim(prefix string, p Producer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.Trim(prefix, "/")] = p
}

// Unclaim removes the claim on prefix.
func (c *Claims) Unclaim(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, strings.Trim(prefix, "/"))
}

// Lookup returns the producer with the longest claim covering logical.
func (c *Claims) Lookup(logical string) (Producer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := strings.Trim(logical, "/")
	for {
		if p, ok := c.entries[key]; ok {
			return p, true
		}
		i := strings.LastIndexByte(key, '/')
		if i < 0 {
			break
		}
		key = key[:i]
	}
	if p, ok := c.entries[""]; ok {
		return p, true
	}
	return nil, false
}

// producerFor returns the claim for p, else the namespace producer.
func (ns *Namespace) producerFor(p *Path) Producer {
	logical := p.raw
	if p.original != "" {
		logical = p.original
	}
	if prod, ok := ns.claims.Lookup(logical); ok {
		return prod
	}
	return ns.producer
}

// State returns the production state and the captured error, if any.
func (p *Path) State() (ProducedState, error) {
	p.prodMu.Lock()
	defer p.prodMu.Unlock()
	return p.state, p.err
}

// Produce materializes the path if needed. See Namespace.Produce.
func (p *Path) Produce(ctx context.Context, force bool) (bool, error) {
	return p.ns.Produce(ctx, p, force)
}

// Produce runs the producer for p at most once per instance.
//
// A failed instance returns its captured error. A done instance returns
// without work unless force is set. Otherwise an existing target marks the
// instance done; a missing one is produced under the namespace lock for the
// target, re-checking existence once the lock is held so that racing
// instances and processes produce it once. ErrNotFound from the producer
// marks the instance done and is not returned. Other errors are logged,
// captured as a *ProductionError and returned.
//
// The returned bool reports whether the resource is available.
func (ns *Namespace) Produce(ctx context.Context, p *Path, force bool) (bool, error) {
	p.prodMu.Lock()
	defer p.prodMu.Unlock()

	switch p.state {
	case Failed:
		return false, p.err
	case Done:
		if !force {
			return p.found, nil
		}
	}

	target := p.Find().raw
	if !force && fs.Exists(ns.fs, target) {
		p.markDone(true)
		return true, nil
	}

	prod := ns.producerFor(p)
	if prod == nil {
		exists := fs.Exists(ns.fs, target)
		p.markDone(exists)
		return exists, nil
	}

	unlock, err := ns.locker.Acquire(ctx, target)
	if err != nil {
		return false, err
	}
	defer func() {
		if uerr := unlock.Unlock(); uerr != nil {
			ns.logger.Warn("resource: unlock failed", "path", target, "error", uerr)
		}
	}()

	if !force && fs.Exists(ns.fs, target) {
		p.markDone(true)
		return true, nil
	}

	start := time.Now()
	ok, err := prod.Produce(ctx, p, target)
	switch {
	case errors.Is(err, ErrNotFound):
		ns.logger.Debug("resource: not found", "path", p.raw, "target", target)
		p.markDone(false)
		return false, nil
	case err != nil:
		ns.logger.Warn("resource: production failed", "path", p.raw, "error", err)
		p.state = Failed
		p.err = &ProductionError{Path: p.raw, Target: target, Err: err}
		return false, p.err
	}

	available := ok || fs.Exists(ns.fs, target)
	ns.logger.Debug("resource: produced", "path", p.raw, "target", target, "duration", time.Since(start))
	p.markDone(available)
	return available, nil
}

// markDone records a finished production. Callers hold p.prodMu.
func (p *Path) markDone(found bool) {
	p.state = Done
	p.found = found
	p.err = nil
}

// ProduceAndFind returns the resolved path, producing it first when it is
// missing. If it still does not exist, each extension is tried and
// ErrNotFound is returned when nothing is found.
func (p *Path) ProduceAndFind(ctx context.Context, exts ...string) (*Path, error) {
	found := p.FindWithExtension(exts...)
	if fs.Exists(p.ns.fs, found.raw) {
		return found, nil
	}
	if _, err := p.Produce(ctx, false); err != nil {
		return nil, err
	}
	found = p.FindWithExtension(exts...)
	if !fs.Exists(p.ns.fs, found.raw) {
		return nil, &ProductionError{Path: p.raw, Target: found.raw, Err: ErrNotFound}
	}
	return found, nil
}
