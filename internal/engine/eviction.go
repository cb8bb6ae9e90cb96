package engine

import (
	"context"
	"log/slog"
	"time"

	"quote_stream/internal/event"
	"quote_stream/internal/infra"
	"quote_stream/internal/registry"
)

// EvictionMonitor periodically removes subscribers that stopped pinging.
// It is the only component that removes subscribers because of time.
type EvictionMonitor struct {
	registry *registry.Registry
	timeout  time.Duration
	interval time.Duration
	sink     event.Sink
	metrics  *infra.Metrics
	now      func() time.Time
}

// NewEvictionMonitor scans reg every interval and evicts entries older than timeout.
func NewEvictionMonitor(reg *registry.Registry, timeout, interval time.Duration, sink event.Sink, m *infra.Metrics) *EvictionMonitor {
	if sink == nil {
		sink = event.Discard
	}
	if m == nil {
		m = infra.GlobalMetrics
	}
	return &EvictionMonitor{
		registry: reg,
		timeout:  timeout,
		interval: interval,
		sink:     sink,
		metrics:  m,
		now:      time.Now,
	}
}

// Run scans on a fixed interval until ctx is done.
func (e *EvictionMonitor) Run(ctx context.Context) error {
	slog.Info("Eviction monitor started",
		slog.Duration("timeout", e.timeout),
		slog.Duration("interval", e.interval))

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Scan()
		}
	}
}

// Scan runs one sweep and returns the number of evicted subscribers.
// A sweep skipped on contention counts as zero and is retried next tick.
func (e *EvictionMonitor) Scan() int {
	evicted, ok := e.registry.Sweep(e.timeout)
	if !ok {
		e.metrics.RecordSweepSkipped()
		return 0
	}
	if len(evicted) == 0 {
		return 0
	}

	at := e.now()
	for _, mb := range evicted {
		slog.Warn("SUBSCRIBER_EVICTED",
			slog.String("addr", mb.Addr().String()),
			slog.String("session_id", mb.SessionID()),
			slog.Duration("timeout", e.timeout))
		e.sink.Publish(event.SubscriberEvent{
			Kind:      event.KindEvicted,
			SessionID: mb.SessionID(),
			Addr:      mb.Addr().String(),
			Tickers:   mb.Tickers(),
			At:        at,
		})
	}
	e.metrics.RecordEvictions(len(evicted))
	e.metrics.SetActiveSubscribers(e.registry.Len())
	return len(evicted)
}
