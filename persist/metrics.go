package persist

import (
	"sync/atomic"
	"time"
)

// MetricsObserver receives store events. Implement it to export cache
// behavior to a monitoring system.
type MetricsObserver interface {
	// RecordHit is called when an existing artifact satisfies a call.
	RecordHit(key string)

	// RecordMiss is called when the producer has to run.
	RecordMiss(key string)

	// RecordProduce is called after each producer run.
	RecordProduce(duration time.Duration, err error)

	// RecordStream is called when a background writer finishes.
	RecordStream(bytes int64, err error)
}

// NoopMetrics discards all events.
type NoopMetrics struct{}

func (NoopMetrics) RecordHit(string)                   {}
func (NoopMetrics) RecordMiss(string)                  {}
func (NoopMetrics) RecordProduce(time.Duration, error) {}
func (NoopMetrics) RecordStream(int64, error)          {}

// BasicMetrics counts events in memory.
type BasicMetrics struct {
	Hits              atomic.Int64
	Misses            atomic.Int64
	ProduceCount      atomic.Int64
	ProduceErrors     atomic.Int64
	ProduceTotalNanos atomic.Int64
	StreamCount       atomic.Int64
	StreamErrors      atomic.Int64
	StreamBytes       atomic.Int64
}

// RecordHit implements MetricsObserver.
func (b *BasicMetrics) RecordHit(string) { b.Hits.Add(1) }

// RecordMiss implements MetricsObserver.
func (b *BasicMetrics) RecordMiss(string) { b.Misses.Add(1) }

// RecordProduce implements MetricsObserver.
func (b *BasicMetrics) RecordProduce(duration time.Duration, err error) {
	b.ProduceCount.Add(1)
	b.ProduceTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ProduceErrors.Add(1)
	}
}

// RecordStream implements MetricsObserver.
func (b *BasicMetrics) RecordStream(bytes int64, err error) {
	b.StreamCount.Add(1)
	b.StreamBytes.Add(bytes)
	if err != nil {
		b.StreamErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetrics) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		Hits:            b.Hits.Load(),
		Misses:          b.Misses.Load(),
		ProduceCount:    b.ProduceCount.Load(),
		ProduceErrors:   b.ProduceErrors.Load(),
		ProduceAvgNanos: b.avgProduceNanos(),
		StreamCount:     b.StreamCount.Load(),
		StreamErrors:    b.StreamErrors.Load(),
		StreamBytes:     b.StreamBytes.Load(),
	}
}

func (b *BasicMetrics) avgProduceNanos() int64 {
	count := b.ProduceCount.Load()
	if count == 0 {
		return 0
	}
	return b.ProduceTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetrics state.
type BasicMetricsStats struct {
	Hits            int64
	Misses          int64
	ProduceCount    int64
	ProduceErrors   int64
	ProduceAvgNanos int64
	StreamCount     int64
	StreamErrors    int64
	StreamBytes     int64
}
