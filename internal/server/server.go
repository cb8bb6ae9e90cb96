package server

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"quote_stream/internal/control"
	"quote_stream/internal/domain"
	"quote_stream/internal/engine"
	"quote_stream/internal/event"
	"quote_stream/internal/infra"
	"quote_stream/internal/infra/monitor"
	"quote_stream/internal/infra/storage"
	"quote_stream/internal/quote"
	"quote_stream/internal/registry"
	"quote_stream/internal/service"

	"golang.org/x/sync/errgroup"
)

// Option configures a Server.
type Option func(*options)

type options struct {
	journal  *storage.Journal
	metrics  *infra.Metrics
	rand     quote.Rand
	dumpFile string
}

// WithJournal records subscriber sessions through j.
func WithJournal(j *storage.Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithMetrics replaces the global metrics instance.
func WithMetrics(m *infra.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRand seeds the generator with a fixed source.
func WithRand(r quote.Rand) Option {
	return func(o *options) { o.rand = r }
}

// WithDumpFile sets where the broadcaster writes its crash dump.
func WithDumpFile(path string) Option {
	return func(o *options) { o.dumpFile = path }
}

// Server owns the sockets and the shared registry and drives every worker.
type Server struct {
	cfg     *infra.Config
	tcp     *net.TCPListener
	udp     *net.UDPConn
	metrics *infra.Metrics

	registry    *registry.Registry
	quotes      *service.QuoteService
	broadcaster *engine.Broadcaster
	registrar   *engine.Registrar
	liveness    *engine.LivenessReceiver
	eviction    *engine.EvictionMonitor
	control     *control.Listener
	journal     *storage.Journal
	monitor     *monitor.Server
}

// New binds both sockets and wires the workers. Bind failures are fatal.
func New(cfg *infra.Config, catalog []string, opts ...Option) (*Server, error) {
	o := options{metrics: infra.GlobalMetrics, dumpFile: engine.DefaultDumpFile}
	for _, opt := range opts {
		opt(&o)
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", cfg.Server.TCPAddr)
	if err != nil {
		return nil, domain.NewFatalNetworkError("resolve tcp addr", err)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Server.UDPAddr)
	if err != nil {
		return nil, domain.NewFatalNetworkError("resolve udp addr", err)
	}

	tcp, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, domain.NewFatalNetworkError("listen tcp", err)
	}
	udp, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		tcp.Close()
		return nil, domain.NewFatalNetworkError("listen udp", err)
	}

	var sink event.Sink = event.Discard
	if o.journal != nil {
		sink = o.journal
	}

	gen := quote.NewGenerator(catalog, quote.Options{
		DefaultPrice:  cfg.Quotes.DefaultPrice.InexactFloat64(),
		RatioMin:      cfg.Quotes.RatioMin.InexactFloat64(),
		RatioMax:      cfg.Quotes.RatioMax.InexactFloat64(),
		HighLiquidity: cfg.Quotes.HighLiquidity,
		Rand:          o.rand,
	})

	reg := registry.New(cfg.Delivery.MailboxSize)
	handoff := engine.NewHandoff()
	pool := engine.NewDeliveryPool(udp, o.metrics)
	registrar := engine.NewRegistrar(reg, pool, sink, o.metrics)

	s := &Server{
		cfg:         cfg,
		tcp:         tcp,
		udp:         udp,
		metrics:     o.metrics,
		registry:    reg,
		quotes:      service.NewQuoteService(gen, handoff, cfg.Quotes.Interval, o.metrics),
		broadcaster: engine.NewBroadcaster(handoff, reg, o.metrics, o.dumpFile),
		registrar:   registrar,
		liveness:    engine.NewLivenessReceiver(udp, reg, cfg.Liveness.ReadTimeout, o.metrics),
		eviction:    engine.NewEvictionMonitor(reg, cfg.Liveness.EvictionTimeout, cfg.Liveness.ScanInterval, sink, o.metrics),
		control: control.NewListener(tcp, registrar, control.Options{
			AcceptIdle:      cfg.Server.AcceptIdle,
			RequestTimeout:  cfg.Server.RequestTimeout,
			MaxRequestBytes: cfg.Server.MaxRequestBytes,
		}, o.metrics),
		journal: o.journal,
	}
	if cfg.Monitor.Addr != "" {
		s.monitor = monitor.New(cfg.Monitor.Addr, s, cfg.Monitor.PushInterval, cfg.Monitor.Pprof)
	}
	return s, nil
}

// TCPAddr is the bound control-plane address.
func (s *Server) TCPAddr() *net.TCPAddr {
	return s.tcp.Addr().(*net.TCPAddr)
}

// UDPAddr is the bound broadcast and liveness address.
func (s *Server) UDPAddr() *net.UDPAddr {
	return s.udp.LocalAddr().(*net.UDPAddr)
}

// Registry exposes the subscriber table for status readers.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Run starts every worker and blocks until ctx is done or one of them
// fails. Shutdown closes all mailboxes, waits for the delivery workers,
// flushes the journal and closes both sockets.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("Quote server started",
		slog.String("tcp", s.TCPAddr().String()),
		slog.String("udp", s.UDPAddr().String()),
		slog.Int("tickers", len(s.quotes.Tickers())))

	g, gctx := errgroup.WithContext(ctx)
	workers := []domain.Worker{s.quotes, s.broadcaster, s.liveness, s.eviction, s.control}
	if s.journal != nil {
		workers = append(workers, s.journal)
	}
	if s.monitor != nil {
		workers = append(workers, s.monitor)
	}
	for _, w := range workers {
		g.Go(func() error { return w.Run(gctx) })
	}

	err := g.Wait()
	s.shutdown()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Server) shutdown() {
	slog.Info("Shutting down quote server...")
	s.registrar.Shutdown()
	if s.journal != nil {
		s.journal.Flush()
	}
	if err := s.tcp.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Warn("Failed to close tcp listener", slog.Any("error", err))
	}
	if err := s.udp.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Warn("Failed to close udp socket", slog.Any("error", err))
	}
	slog.Info("Quote server stopped")
}

// Status builds the monitor report.
func (s *Server) Status() monitor.Report {
	var seq uint64
	if latest := s.quotes.Latest(); latest != nil {
		seq = latest.Seq
	}
	return monitor.Report{
		Metrics:     s.metrics.Snapshot(),
		Subscribers: s.registry.Entries(),
		LatestSeq:   seq,
		Tickers:     len(s.quotes.Tickers()),
	}
}
