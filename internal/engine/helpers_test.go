package engine

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"quote_stream/internal/event"

	"github.com/stretchr/testify/require"
)

type datagram struct {
	payload []byte
	addr    netip.AddrPort
}

type fakeSender struct {
	mu   sync.Mutex
	sent []datagram
	err  error
}

func (f *fakeSender) WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	own := make([]byte, len(b))
	copy(own, b)
	f.sent = append(f.sent, datagram{payload: own, addr: addr})
	if f.err != nil {
		return 0, f.err
	}
	return len(b), nil
}

func (f *fakeSender) Sent() []datagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]datagram, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSender) waitFor(t *testing.T, n int) []datagram {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.Sent()) >= n }, 2*time.Second, 5*time.Millisecond)
	return f.Sent()
}

type recordingSink struct {
	mu     sync.Mutex
	events []event.SubscriberEvent
}

func (s *recordingSink) Publish(ev event.SubscriberEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) Events() []event.SubscriberEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.SubscriberEvent, len(s.events))
	copy(out, s.events)
	return out
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var (
	addrA = netip.MustParseAddrPort("127.0.0.1:9001")
	addrB = netip.MustParseAddrPort("127.0.0.1:9002")
)
