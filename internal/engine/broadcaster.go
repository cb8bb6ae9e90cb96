package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"quote_stream/internal/domain"
	"quote_stream/internal/infra"
	"quote_stream/internal/registry"
)

// DefaultDumpFile receives the registry state when the broadcaster halts.
const DefaultDumpFile = "panic_dump.json"

// Broadcaster is the single fan-out loop. Each cycle it takes the pending
// snapshot from the handoff and offers the same reference to every
// mailbox registered at that moment.
type Broadcaster struct {
	handoff  *Handoff
	registry *registry.Registry
	metrics  *infra.Metrics
	dumpFile string

	lastSeq atomic.Uint64
}

// NewBroadcaster creates a broadcaster. An empty dumpFile disables the crash dump.
func NewBroadcaster(h *Handoff, reg *registry.Registry, m *infra.Metrics, dumpFile string) *Broadcaster {
	if m == nil {
		m = infra.GlobalMetrics
	}
	return &Broadcaster{
		handoff:  h,
		registry: reg,
		metrics:  m,
		dumpFile: dumpFile,
	}
}

// Run starts the fan-out loop. This MUST be run in a single goroutine.
func (b *Broadcaster) Run(ctx context.Context) error {
	slog.Info("Broadcaster started")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			if b.dumpFile != "" {
				b.DumpState(b.dumpFile)
			}
			// Halt after dump.
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Broadcaster stopping...")
			return nil
		case snap := <-b.handoff.C():
			b.fanout(snap)
		}
	}
}

// fanout offers snap to every current mailbox without blocking.
// Full and closed mailboxes are skipped for this cycle only.
func (b *Broadcaster) fanout(snap *domain.Snapshot) (queued, dropped int) {
	// Snapshots may be superseded, but never go backwards.
	if last := b.lastSeq.Load(); last != 0 && snap.Seq <= last {
		panic(fmt.Sprintf("SEQUENCE_REGRESSION_DETECTED: last %d, got %d", last, snap.Seq))
	}

	start := time.Now()
	for _, mb := range b.registry.Mailboxes() {
		err := mb.Offer(snap)
		switch {
		case err == nil:
			queued++
		case errors.Is(err, registry.ErrMailboxFull):
			dropped++
			slog.Debug("DROP: subscriber mailbox full",
				slog.String("addr", mb.Addr().String()),
				slog.Uint64("seq", snap.Seq))
		case errors.Is(err, registry.ErrMailboxClosed):
			// Evicted or replaced after the mailbox set was read.
		}
	}

	b.lastSeq.Store(snap.Seq)
	b.metrics.RecordFanout(queued, dropped, time.Since(start).Nanoseconds())
	return queued, dropped
}

// LastSeq is the sequence of the most recently fanned-out snapshot.
func (b *Broadcaster) LastSeq() uint64 {
	return b.lastSeq.Load()
}

// DumpState writes the registry state to a file (for post-mortem).
func (b *Broadcaster) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		LastSeq     uint64           `json:"last_seq"`
		DumpedAt    time.Time        `json:"dumped_at"`
		Subscribers []registry.Entry `json:"subscribers"`
	}{
		LastSeq:     b.lastSeq.Load(),
		DumpedAt:    time.Now(),
		Subscribers: b.registry.Entries(),
	}

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, buf, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}

// Compile-time check
var _ domain.Worker = (*Broadcaster)(nil)
