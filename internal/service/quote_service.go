package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"quote_stream/internal/domain"
	"quote_stream/internal/infra"
	"quote_stream/internal/quote"
)

// Publisher receives each generated snapshot. It must not block.
type Publisher interface {
	Publish(s *domain.Snapshot) (superseded bool)
}

// QuoteService runs the generation loop and keeps the latest snapshot
// for status readers.
type QuoteService struct {
	mu     sync.RWMutex
	latest *domain.Snapshot

	gen      *quote.Generator
	pub      Publisher
	interval time.Duration
	metrics  *infra.Metrics
	seq      uint64 // loop goroutine only
}

// NewQuoteService creates a new QuoteService instance
func NewQuoteService(gen *quote.Generator, pub Publisher, interval time.Duration, m *infra.Metrics) *QuoteService {
	if m == nil {
		m = infra.GlobalMetrics
	}
	return &QuoteService{
		gen:      gen,
		pub:      pub,
		interval: interval,
		metrics:  m,
	}
}

// Run generates one snapshot immediately and then one per interval until
// ctx is done.
func (s *QuoteService) Run(ctx context.Context) error {
	slog.Info("Quote generation started",
		slog.Int("tickers", len(s.gen.Tickers())),
		slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick()
		select {
		case <-ctx.Done():
			slog.Info("Quote generation stopping...")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick perturbs prices, builds the next snapshot and publishes it.
// Only the generation loop may call it.
func (s *QuoteService) Tick() *domain.Snapshot {
	s.gen.PerturbPrices()
	s.seq++
	snap := &domain.Snapshot{
		Seq:         s.seq,
		GeneratedAt: time.Now(),
		Quotes:      s.gen.GenerateSnapshot(),
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	superseded := s.pub.Publish(snap)
	s.metrics.RecordSnapshot(superseded)
	if superseded {
		slog.Debug("Unconsumed snapshot superseded", slog.Uint64("seq", snap.Seq))
	}
	return snap
}

// Latest returns the most recent snapshot, or nil before the first cycle.
func (s *QuoteService) Latest() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Tickers returns the tracked catalog.
func (s *QuoteService) Tickers() []string {
	return s.gen.Tickers()
}
