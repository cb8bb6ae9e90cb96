package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"quote_stream/internal/domain"
	"quote_stream/internal/infra"
	"quote_stream/internal/registry"
)

// Subscriber registers an accepted request.
type Subscriber interface {
	Subscribe(addr netip.AddrPort, tickers []string) *registry.Mailbox
}

// Options bounds every blocking call of the listener.
type Options struct {
	AcceptIdle      time.Duration
	RequestTimeout  time.Duration
	MaxRequestBytes int
}

// connState tracks one control connection through its lifetime.
type connState int

const (
	stateAwaitRequest connState = iota
	stateValidate
	stateRegistered
	stateRejected
	stateRespondSent
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitRequest:
		return "AWAIT_REQUEST"
	case stateValidate:
		return "VALIDATE"
	case stateRegistered:
		return "REGISTERED"
	case stateRejected:
		return "REJECTED"
	case stateRespondSent:
		return "RESPOND_SENT"
	case stateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Listener accepts control connections, one request per connection.
type Listener struct {
	ln      *net.TCPListener
	sub     Subscriber
	opts    Options
	metrics *infra.Metrics

	wg sync.WaitGroup
}

// NewListener serves ln. The listener is closed by the caller.
func NewListener(ln *net.TCPListener, sub Subscriber, opts Options, m *infra.Metrics) *Listener {
	if m == nil {
		m = infra.GlobalMetrics
	}
	return &Listener{ln: ln, sub: sub, opts: opts, metrics: m}
}

// Run accepts until ctx is done or the socket is closed, then waits for
// in-flight connections.
func (l *Listener) Run(ctx context.Context) error {
	slog.Info("Control plane listening", slog.String("addr", l.ln.Addr().String()))
	defer l.wg.Wait()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.ln.SetDeadline(time.Now().Add(l.opts.AcceptIdle)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return domain.NewFatalNetworkError("set accept deadline", err)
		}

		conn, err := l.ln.AcceptTCP()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue // idle
			}
			slog.Warn("Accept failed", slog.Any("error", err))
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handle(conn)
		}()
	}
}

func (l *Listener) handle(conn *net.TCPConn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	state := stateAwaitRequest
	defer func() {
		slog.Debug("Control connection finished",
			slog.String("remote", remote),
			slog.String("state", state.String()))
	}()

	_ = conn.SetReadDeadline(time.Now().Add(l.opts.RequestTimeout))
	req, err := ReadRequest(conn, l.opts.MaxRequestBytes)

	state = stateValidate
	var resp domain.SubscriptionResponse
	var pe *domain.ProtocolError
	switch {
	case err == nil:
		addr := replyAddr(req.Addr, conn)
		mb := l.sub.Subscribe(addr, req.Tickers)
		state = stateRegistered
		resp = domain.OkResponse()
		slog.Debug("Subscription accepted",
			slog.String("remote", remote),
			slog.String("addr", addr.String()),
			slog.String("session_id", mb.SessionID()))
	case errors.As(err, &pe):
		state = stateRejected
		resp = domain.ErrorResponse(pe.Message)
		l.metrics.RecordRejection()
		slog.Info("Subscription rejected",
			slog.String("remote", remote),
			slog.String("reason", pe.Message),
			slog.Any("error", err))
	default:
		state = stateClosed
		slog.Warn("Control connection failed", slog.String("remote", remote), slog.Any("error", err))
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(l.opts.RequestTimeout))
	if err := WriteResponse(conn, resp); err != nil {
		slog.Warn("Failed to send response", slog.String("remote", remote), slog.Any("error", err))
		state = stateClosed
		return
	}
	state = stateRespondSent
}

// replyAddr substitutes the control peer's IP for an unspecified one so a
// subscriber bound to a wildcard address is still reachable.
func replyAddr(addr netip.AddrPort, conn net.Conn) netip.AddrPort {
	if !addr.Addr().IsUnspecified() {
		return addr
	}
	tcp, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return addr
	}
	return domain.NormalizeAddr(netip.AddrPortFrom(tcp.AddrPort().Addr(), addr.Port()))
}
