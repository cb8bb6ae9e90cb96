package engine

import (
	"log/slog"
	"net/netip"
	"time"

	"quote_stream/internal/event"
	"quote_stream/internal/infra"
	"quote_stream/internal/registry"

	"github.com/google/uuid"
)

// Registrar turns an accepted subscription into a registry entry with a
// running delivery worker.
type Registrar struct {
	registry *registry.Registry
	pool     *DeliveryPool
	sink     event.Sink
	metrics  *infra.Metrics
}

// NewRegistrar wires the registry to the delivery pool.
func NewRegistrar(reg *registry.Registry, pool *DeliveryPool, sink event.Sink, m *infra.Metrics) *Registrar {
	if sink == nil {
		sink = event.Discard
	}
	if m == nil {
		m = infra.GlobalMetrics
	}
	return &Registrar{registry: reg, pool: pool, sink: sink, metrics: m}
}

// Subscribe registers addr for tickers under a new session id. A previous
// subscription for the same address is replaced.
func (r *Registrar) Subscribe(addr netip.AddrPort, tickers []string) *registry.Mailbox {
	mb, replaced := r.registry.Register(addr, uuid.NewString(), tickers)
	r.pool.Spawn(mb)

	r.metrics.RecordRegistration()
	r.metrics.SetActiveSubscribers(r.registry.Len())

	ev := event.SubscriberEvent{
		Kind:      event.KindRegistered,
		SessionID: mb.SessionID(),
		Addr:      mb.Addr().String(),
		Tickers:   mb.Tickers(),
		At:        mb.RegisteredAt(),
	}
	if replaced != nil {
		ev.ReplacedSessionID = replaced.SessionID()
		slog.Info("Subscriber replaced",
			slog.String("addr", ev.Addr),
			slog.String("old_session_id", ev.ReplacedSessionID),
			slog.String("session_id", ev.SessionID))
	} else {
		slog.Info("Subscriber registered",
			slog.String("addr", ev.Addr),
			slog.String("session_id", ev.SessionID),
			slog.Int("tickers", len(ev.Tickers)))
	}
	r.sink.Publish(ev)
	return mb
}

// Shutdown closes every mailbox and waits for all delivery workers to drain.
func (r *Registrar) Shutdown() {
	closed := r.registry.CloseAll()
	at := time.Now()
	for _, mb := range closed {
		r.sink.Publish(event.SubscriberEvent{
			Kind:      event.KindShutdown,
			SessionID: mb.SessionID(),
			Addr:      mb.Addr().String(),
			At:        at,
		})
	}
	r.pool.Wait()
	r.metrics.SetActiveSubscribers(0)
	slog.Info("Delivery workers stopped", slog.Int("subscribers", len(closed)))
}
