package registry

import (
	"errors"
	"net/netip"
	"sync"
	"time"

	"quote_stream/internal/domain"
)

var (
	// ErrMailboxFull means the subscriber has not drained its previous snapshots.
	ErrMailboxFull = errors.New("mailbox full")

	// ErrMailboxClosed means the subscriber was evicted or replaced.
	ErrMailboxClosed = errors.New("mailbox closed")
)

// Mailbox is a subscriber's bounded, closable delivery queue.
// Closing it is the only teardown signal its delivery worker observes.
type Mailbox struct {
	addr         netip.AddrPort
	sessionID    string
	tickers      []string
	wanted       map[string]struct{}
	registeredAt time.Time

	mu     sync.RWMutex
	closed bool
	ch     chan *domain.Snapshot
}

func newMailbox(addr netip.AddrPort, sessionID string, tickers []string, capacity int, now time.Time) *Mailbox {
	if capacity < 1 {
		capacity = 1
	}
	own := make([]string, len(tickers))
	copy(own, tickers)
	return &Mailbox{
		addr:         addr,
		sessionID:    sessionID,
		tickers:      own,
		wanted:       domain.TickerSet(own),
		registeredAt: now,
		ch:           make(chan *domain.Snapshot, capacity),
	}
}

// Addr is the subscriber's broadcast address.
func (m *Mailbox) Addr() netip.AddrPort { return m.addr }

// SessionID identifies this registration lifetime.
func (m *Mailbox) SessionID() string { return m.sessionID }

// Tickers returns the requested tickers in request order.
func (m *Mailbox) Tickers() []string {
	out := make([]string, len(m.tickers))
	copy(out, m.tickers)
	return out
}

// Wanted is the read-only ticker lookup set.
func (m *Mailbox) Wanted() map[string]struct{} { return m.wanted }

// RegisteredAt is when the mailbox was created.
func (m *Mailbox) RegisteredAt() time.Time { return m.registeredAt }

// C is drained by the delivery worker until it is closed.
func (m *Mailbox) C() <-chan *domain.Snapshot { return m.ch }

// Offer enqueues a snapshot without blocking.
func (m *Mailbox) Offer(s *domain.Snapshot) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrMailboxClosed
	}
	select {
	case m.ch <- s:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Close ends the stream. Only the first call closes the channel and
// returns true.
func (m *Mailbox) Close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.closed = true
	close(m.ch)
	return true
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Len is the number of undelivered snapshots.
func (m *Mailbox) Len() int {
	return len(m.ch)
}
