package locus

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/locus/persist"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    persist.NoopMetrics
//	    findCounter *prometheus.CounterVec
//	}
//
//	func (p *PrometheusCollector) RecordFind(duration time.Duration, found bool) {
//	    p.findCounter.WithLabelValues(strconv.FormatBool(found)).Inc()
//	}
type MetricsCollector interface {
	persist.MetricsObserver

	// RecordFind is called after each path resolution. found reports
	// whether the resolved path exists.
	RecordFind(duration time.Duration, found bool)

	// RecordResourceProduce is called after each producer run for a path.
	RecordResourceProduce(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct {
	persist.NoopMetrics
}

func (NoopMetricsCollector) RecordFind(time.Duration, bool)             {}
func (NoopMetricsCollector) RecordResourceProduce(time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	persist.BasicMetrics

	FindCount                 atomic.Int64
	FindMisses                atomic.Int64
	FindTotalNanos            atomic.Int64
	ResourceProduceCount      atomic.Int64
	ResourceProduceErrors     atomic.Int64
	ResourceProduceTotalNanos atomic.Int64
}

// RecordFind implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFind(duration time.Duration, found bool) {
	b.FindCount.Add(1)
	b.FindTotalNanos.Add(duration.Nanoseconds())
	if !found {
		b.FindMisses.Add(1)
	}
}

// RecordResourceProduce implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResourceProduce(duration time.Duration, err error) {
	b.ResourceProduceCount.Add(1)
	b.ResourceProduceTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ResourceProduceErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BasicMetricsStats:       b.BasicMetrics.GetStats(),
		FindCount:               b.FindCount.Load(),
		FindMisses:              b.FindMisses.Load(),
		FindAvgNanos:            avg(b.FindTotalNanos.Load(), b.FindCount.Load()),
		ResourceProduceCount:    b.ResourceProduceCount.Load(),
		ResourceProduceErrors:   b.ResourceProduceErrors.Load(),
		ResourceProduceAvgNanos: avg(b.ResourceProduceTotalNanos.Load(), b.ResourceProduceCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	persist.BasicMetricsStats

	FindCount               int64
	FindMisses              int64
	FindAvgNanos            int64
	ResourceProduceCount    int64
	ResourceProduceErrors   int64
	ResourceProduceAvgNanos int64
}
