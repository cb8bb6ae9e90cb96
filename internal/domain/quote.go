package domain

import (
	"net/netip"
	"time"
)

// KindStream is the only subscription kind the control plane accepts.
const KindStream = "STREAM"

// Quote is a single generated price point. Immutable once produced.
type Quote struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	Volume    uint32  `json:"volume"`
	Timestamp uint64  `json:"timestamp"` // Unix millis
}

// Snapshot is one generation cycle's full quote list.
// It is shared by reference between the broadcaster and every delivery
// worker of that cycle and must never be mutated after publication.
type Snapshot struct {
	Seq         uint64
	GeneratedAt time.Time
	Quotes      []Quote
}

// Filter returns the quotes whose ticker is in the wanted set.
// The result is never nil so that it encodes as `[]`.
func (s *Snapshot) Filter(wanted map[string]struct{}) []Quote {
	out := make([]Quote, 0, len(wanted))
	if s == nil {
		return out
	}
	for _, q := range s.Quotes {
		if _, ok := wanted[q.Ticker]; ok {
			out = append(out, q)
		}
	}
	return out
}

// SubscriptionRequest is sent once per subscriber over the control plane.
type SubscriptionRequest struct {
	Kind    string         `json:"kind"`
	Addr    netip.AddrPort `json:"addr"`
	Tickers []string       `json:"tickers"`
}

// ResponseStatus is the outcome reported to the control-plane peer.
type ResponseStatus string

const (
	StatusOk    ResponseStatus = "Ok"
	StatusError ResponseStatus = "Error"
)

// SubscriptionResponse answers a SubscriptionRequest synchronously.
type SubscriptionResponse struct {
	Status  ResponseStatus `json:"status"`
	Message string         `json:"message"`
}

// OkResponse builds the acknowledgement sent after a successful registration.
func OkResponse() SubscriptionResponse {
	return SubscriptionResponse{Status: StatusOk, Message: "ok"}
}

// ErrorResponse builds an in-band error reply.
func ErrorResponse(msg string) SubscriptionResponse {
	return SubscriptionResponse{Status: StatusError, Message: msg}
}

// TickerSet turns a requested ticker list into a lookup set.
func TickerSet(tickers []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		set[t] = struct{}{}
	}
	return set
}

// NormalizeAddr strips IPv4-in-IPv6 mapping so the same peer always maps
// to the same registry key regardless of socket family.
func NormalizeAddr(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}
