package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"quote_stream/internal/domain"
	"quote_stream/internal/infra"

	"golang.org/x/sync/errgroup"
)

const maxDatagram = 64 * 1024

// Config describes one subscriber.
type Config struct {
	ServerAddr     string // control plane (TCP)
	ServerUDPAddr  string // liveness pings
	ListenAddr     string // local UDP bind, also the reply address
	Tickers        []string
	PingInterval   time.Duration
	RequestTimeout time.Duration
	DialRetries    int
	Backoff        infra.Backoff
}

// ConfigFrom builds a client Config from the shared configuration.
func ConfigFrom(cfg *infra.Config, tickers []string) Config {
	return Config{
		ServerAddr:     cfg.Client.ServerAddr,
		ServerUDPAddr:  cfg.Client.ServerUDPAddr,
		ListenAddr:     cfg.Client.ListenAddr,
		Tickers:        tickers,
		PingInterval:   cfg.Client.PingInterval,
		RequestTimeout: cfg.Client.RequestTimeout,
		DialRetries:    cfg.Client.DialRetries,
		Backoff:        cfg.DialBackoff(),
	}
}

// QuoteHandler receives every decoded broadcast datagram.
type QuoteHandler func(quotes []domain.Quote)

// Client subscribes to a quote server and receives its broadcasts.
type Client struct {
	cfg       Config
	conn      *net.UDPConn
	local     netip.AddrPort
	serverUDP netip.AddrPort
}

// New binds the local UDP socket.
func New(cfg Config) (*Client, error) {
	laddr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, domain.NewFatalNetworkError("resolve listen addr", err)
	}
	raddr, err := net.ResolveUDPAddr("udp", cfg.ServerUDPAddr)
	if err != nil {
		return nil, domain.NewFatalNetworkError("resolve server udp addr", err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, domain.NewFatalNetworkError("bind udp", err)
	}

	return &Client{
		cfg:       cfg,
		conn:      conn,
		local:     domain.NormalizeAddr(conn.LocalAddr().(*net.UDPAddr).AddrPort()),
		serverUDP: domain.NormalizeAddr(raddr.AddrPort()),
	}, nil
}

// LocalAddr is the reply address sent in the subscription request.
func (c *Client) LocalAddr() netip.AddrPort {
	return c.local
}

// Close releases the UDP socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run starts receiving and pinging, then subscribes. It returns when ctx
// is done or the subscription is rejected.
func (c *Client) Run(ctx context.Context, onQuotes QuoteHandler) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.receive(gctx, onQuotes) })
	g.Go(func() error { return c.ping(gctx) })
	g.Go(func() error { return c.Subscribe(gctx) })

	return g.Wait()
}

// Subscribe sends the STREAM request, retrying the dial with backoff.
func (c *Client) Subscribe(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.cfg.RequestTimeout))

	req := domain.SubscriptionRequest{
		Kind:    domain.KindStream,
		Addr:    c.local,
		Tickers: c.cfg.Tickers,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return domain.NewNetworkError("send request", err)
	}
	slog.Info("Request sent",
		slog.String("server", c.cfg.ServerAddr),
		slog.String("addr", c.local.String()),
		slog.Int("tickers", len(req.Tickers)))

	var resp domain.SubscriptionResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return domain.NewNetworkError("read response", err)
	}
	if resp.Status != domain.StatusOk {
		slog.Error("Request rejected", slog.String("message", resp.Message))
		return fmt.Errorf("%w: %s", domain.ErrSubscriptionRejected, resp.Message)
	}

	slog.Info("Subscribed", slog.String("message", resp.Message))
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.cfg.RequestTimeout}
	for retry := 0; ; retry++ {
		conn, err := d.DialContext(ctx, "tcp", c.cfg.ServerAddr)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if retry >= c.cfg.DialRetries {
			return nil, domain.NewNetworkError("dial control plane", err)
		}

		delay := c.cfg.Backoff.Delay(retry)
		slog.Warn("Dial failed, retrying",
			slog.String("server", c.cfg.ServerAddr),
			slog.Duration("delay", delay),
			slog.Any("error", err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) receive(ctx context.Context, onQuotes QuoteHandler) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.RequestTimeout))

		n, _, err := c.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			slog.Warn("UDP read failed", slog.Any("error", err))
			continue
		}

		var quotes []domain.Quote
		if err := json.Unmarshal(buf[:n], &quotes); err != nil {
			slog.Warn("Malformed quote datagram", slog.Int("bytes", n), slog.Any("error", err))
			continue
		}
		if onQuotes != nil {
			onQuotes(quotes)
		}
	}
}

func (c *Client) ping(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	payload := []byte(c.local.String())
	for {
		if _, err := c.conn.WriteToUDPAddrPort(payload, c.serverUDP); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Warn("Ping failed", slog.String("server", c.serverUDP.String()), slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
