package engine

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"quote_stream/internal/infra"
	"quote_stream/internal/registry"
)

// PacketReader is the inbound half of the UDP socket. *net.UDPConn satisfies it.
type PacketReader interface {
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
	SetReadDeadline(t time.Time) error
}

// LivenessReceiver refreshes a subscriber's last-seen time for every
// datagram it sends to the server's UDP port. The payload is ignored.
type LivenessReceiver struct {
	conn        PacketReader
	registry    *registry.Registry
	readTimeout time.Duration
	metrics     *infra.Metrics
}

// NewLivenessReceiver creates a receiver polling conn with readTimeout.
func NewLivenessReceiver(conn PacketReader, reg *registry.Registry, readTimeout time.Duration, m *infra.Metrics) *LivenessReceiver {
	if m == nil {
		m = infra.GlobalMetrics
	}
	return &LivenessReceiver{
		conn:        conn,
		registry:    reg,
		readTimeout: readTimeout,
		metrics:     m,
	}
}

// Run reads pings until ctx is done or the socket is closed.
func (l *LivenessReceiver) Run(ctx context.Context) error {
	slog.Info("Liveness receiver started", slog.Duration("read_timeout", l.readTimeout))

	// Wake a blocked read as soon as shutdown starts.
	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.conn.SetReadDeadline(time.Now().Add(l.readTimeout)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		_, from, err := l.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue // idle
			}
			// ICMP errors from earlier sends can surface here; they are not fatal.
			slog.Warn("Liveness read failed", slog.Any("error", err))
			continue
		}

		l.metrics.RecordPing()
		if !l.registry.Touch(from) {
			slog.Debug("Ping from unknown sender ignored", slog.String("addr", from.String()))
		}
	}
}
