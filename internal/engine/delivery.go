package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"quote_stream/internal/domain"
	"quote_stream/internal/event"
	"quote_stream/internal/infra"
	"quote_stream/internal/registry"
)

// DeliveryPool runs one delivery worker per subscriber mailbox.
type DeliveryPool struct {
	sender  domain.DatagramSender
	metrics *infra.Metrics

	wg     sync.WaitGroup
	active atomic.Int32
}

// NewDeliveryPool creates a pool sending through sender.
func NewDeliveryPool(sender domain.DatagramSender, m *infra.Metrics) *DeliveryPool {
	if m == nil {
		m = infra.GlobalMetrics
	}
	return &DeliveryPool{sender: sender, metrics: m}
}

// Spawn starts the worker for mb. It returns when mb is closed and drained.
func (p *DeliveryPool) Spawn(mb *registry.Mailbox) {
	p.wg.Add(1)
	p.active.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.active.Add(-1)
		p.deliver(mb)
	}()
}

// Wait blocks until every spawned worker has exited.
func (p *DeliveryPool) Wait() {
	p.wg.Wait()
}

// Active is the number of running workers.
func (p *DeliveryPool) Active() int {
	return int(p.active.Load())
}

func (p *DeliveryPool) deliver(mb *registry.Mailbox) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Delivery worker panic recovered",
				slog.String("addr", mb.Addr().String()),
				slog.Any("panic", r))
		}
	}()

	for snap := range mb.C() {
		if err := p.send(mb, snap); err != nil {
			// UDP send failures are transient; the next snapshot tries again.
			slog.Warn("Datagram send failed",
				slog.String("addr", mb.Addr().String()),
				slog.Uint64("seq", snap.Seq),
				slog.Any("error", err))
		}
	}
	slog.Debug("Delivery worker stopped",
		slog.String("addr", mb.Addr().String()),
		slog.String("session_id", mb.SessionID()))
}

func (p *DeliveryPool) send(mb *registry.Mailbox, snap *domain.Snapshot) error {
	buf := event.AcquireBuffer()
	defer event.ReleaseBuffer(buf)

	if err := EncodeQuotes(buf, snap.Filter(mb.Wanted())); err != nil {
		return err
	}

	_, err := p.sender.WriteToUDPAddrPort(buf.Bytes(), mb.Addr())
	p.metrics.RecordSend(err)
	return err
}

// EncodeQuotes writes quotes as one JSON array without a trailing newline.
// An empty list encodes as [].
func EncodeQuotes(buf *bytes.Buffer, quotes []domain.Quote) error {
	if quotes == nil {
		quotes = []domain.Quote{}
	}
	if err := json.NewEncoder(buf).Encode(quotes); err != nil {
		return fmt.Errorf("encode quotes: %w", err)
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}
