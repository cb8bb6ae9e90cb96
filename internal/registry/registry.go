package registry

import (
	"net/netip"
	"sort"
	"sync"
	"time"

	"quote_stream/internal/domain"
)

// lease is the liveness table entry. It remembers which mailbox it was
// stamped for so a stale lease can never tear down a newer registration.
type lease struct {
	seen time.Time
	mb   *Mailbox
}

// Registry is the subscriber table shared by the control plane, the
// liveness receiver, the eviction monitor and the broadcaster.
//
// It keeps two independently locked tables keyed by subscriber address.
// Lock order is liveMu before chMu wherever both are held; Register never
// holds chMu while waiting for liveMu.
type Registry struct {
	chMu      sync.RWMutex
	mailboxes map[netip.AddrPort]*Mailbox

	liveMu sync.RWMutex
	leases map[netip.AddrPort]*lease

	capacity int
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry whose mailboxes hold up to capacity snapshots.
func New(capacity int, opts ...Option) *Registry {
	r := &Registry{
		mailboxes: make(map[netip.AddrPort]*Mailbox),
		leases:    make(map[netip.AddrPort]*lease),
		capacity:  capacity,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts a fresh mailbox for addr and stamps its liveness.
// A previous registration for the same address is replaced and its
// mailbox closed; it is returned as replaced.
func (r *Registry) Register(addr netip.AddrPort, sessionID string, tickers []string) (mb *Mailbox, replaced *Mailbox) {
	addr = domain.NormalizeAddr(addr)
	now := r.now()
	mb = newMailbox(addr, sessionID, tickers, r.capacity, now)

	r.chMu.Lock()
	replaced = r.mailboxes[addr]
	r.mailboxes[addr] = mb
	r.chMu.Unlock()

	r.liveMu.Lock()
	r.chMu.RLock()
	current := r.mailboxes[addr]
	r.chMu.RUnlock()
	// An Evict between the two inserts already removed mb; stamping now
	// would leave an orphan lease.
	if current == mb {
		r.leases[addr] = &lease{seen: now, mb: mb}
	}
	r.liveMu.Unlock()

	if replaced != nil {
		replaced.Close()
	}
	return mb, replaced
}

// Touch refreshes addr's last-seen time. Unknown addresses are ignored.
func (r *Registry) Touch(addr netip.AddrPort) bool {
	addr = domain.NormalizeAddr(addr)
	now := r.now()

	r.liveMu.Lock()
	defer r.liveMu.Unlock()

	l, ok := r.leases[addr]
	if !ok {
		return false
	}
	if now.After(l.seen) {
		l.seen = now
	}
	return true
}

// ListLive returns the addresses that currently hold a liveness lease,
// sorted for stable output.
func (r *Registry) ListLive() []netip.AddrPort {
	r.liveMu.RLock()
	out := make([]netip.AddrPort, 0, len(r.leases))
	for addr := range r.leases {
		out = append(out, addr)
	}
	r.liveMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// Mailboxes returns the current delivery set. The slice is a copy; the
// caller may offer to it without holding any registry lock.
func (r *Registry) Mailboxes() []*Mailbox {
	r.chMu.RLock()
	defer r.chMu.RUnlock()

	out := make([]*Mailbox, 0, len(r.mailboxes))
	for _, mb := range r.mailboxes {
		out = append(out, mb)
	}
	return out
}

// Lookup returns addr's current mailbox.
func (r *Registry) Lookup(addr netip.AddrPort) (*Mailbox, bool) {
	r.chMu.RLock()
	defer r.chMu.RUnlock()
	mb, ok := r.mailboxes[domain.NormalizeAddr(addr)]
	return mb, ok
}

// Len is the number of registered subscribers.
func (r *Registry) Len() int {
	r.chMu.RLock()
	defer r.chMu.RUnlock()
	return len(r.mailboxes)
}

// Evict removes both entries for addr and closes its mailbox.
func (r *Registry) Evict(addr netip.AddrPort) (*Mailbox, bool) {
	addr = domain.NormalizeAddr(addr)

	r.liveMu.Lock()
	r.chMu.Lock()
	mb, ok := r.mailboxes[addr]
	delete(r.mailboxes, addr)
	delete(r.leases, addr)
	r.chMu.Unlock()
	r.liveMu.Unlock()

	if !ok {
		return nil, false
	}
	mb.Close()
	return mb, true
}

// Sweep evicts every subscriber whose last-seen age exceeds timeout.
//
// It never waits for the liveness table: when a registration or a ping
// holds it, the sweep is skipped and ok is false. The caller retries on
// its next tick.
func (r *Registry) Sweep(timeout time.Duration) (evicted []*Mailbox, ok bool) {
	if !r.liveMu.TryLock() {
		return nil, false
	}

	now := r.now()
	var expired []*lease
	for addr, l := range r.leases {
		if now.Sub(l.seen) > timeout {
			expired = append(expired, l)
			delete(r.leases, addr)
		}
	}

	if len(expired) > 0 {
		r.chMu.Lock()
		for _, l := range expired {
			if r.mailboxes[l.mb.addr] == l.mb {
				delete(r.mailboxes, l.mb.addr)
			}
		}
		r.chMu.Unlock()
	}
	r.liveMu.Unlock()

	for _, l := range expired {
		if l.mb.Close() {
			evicted = append(evicted, l.mb)
		}
	}
	return evicted, true
}

// CloseAll empties both tables and closes every mailbox. Used on shutdown.
func (r *Registry) CloseAll() []*Mailbox {
	r.liveMu.Lock()
	r.chMu.Lock()
	all := make([]*Mailbox, 0, len(r.mailboxes))
	for _, mb := range r.mailboxes {
		all = append(all, mb)
	}
	r.mailboxes = make(map[netip.AddrPort]*Mailbox)
	r.leases = make(map[netip.AddrPort]*lease)
	r.chMu.Unlock()
	r.liveMu.Unlock()

	for _, mb := range all {
		mb.Close()
	}
	return all
}

// Entry is a point-in-time view of one subscriber.
type Entry struct {
	Addr      string    `json:"addr"`
	SessionID string    `json:"session_id"`
	Tickers   []string  `json:"tickers"`
	LastSeen  time.Time `json:"last_seen"`
	Pending   int       `json:"pending"`
}

// Entries returns every subscriber that has both a mailbox and a lease.
func (r *Registry) Entries() []Entry {
	r.liveMu.RLock()
	r.chMu.RLock()
	out := make([]Entry, 0, len(r.mailboxes))
	for addr, mb := range r.mailboxes {
		l, ok := r.leases[addr]
		if !ok {
			continue
		}
		out = append(out, Entry{
			Addr:      addr.String(),
			SessionID: mb.sessionID,
			Tickers:   mb.Tickers(),
			LastSeen:  l.seen,
			Pending:   mb.Len(),
		})
	}
	r.chMu.RUnlock()
	r.liveMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}
