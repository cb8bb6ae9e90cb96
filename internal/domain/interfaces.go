package domain

import (
	"context"
	"net/netip"
	"time"
)

// DatagramSender is the unreliable outbound transport. *net.UDPConn satisfies it.
type DatagramSender interface {
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
}

// Worker is a long-lived loop supervised by the server.
type Worker interface {
	Run(ctx context.Context) error
}

// SessionRepository persists subscriber sessions and the ticker catalog.
type SessionRepository interface {
	OpenSession(s *SubscriberSession) error
	EndSession(id, reason string, at time.Time) error
	EndAllOpen(reason string, at time.Time) (int64, error)
	UpsertCatalog(tickers []CatalogTicker) error
}
