package event

import (
	"time"
)

// Kind classifies a subscriber lifecycle transition.
type Kind int

const (
	KindRegistered Kind = iota + 1
	KindEvicted
	KindShutdown
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindRegistered:
		return "REGISTERED"
	case KindEvicted:
		return "EVICTED"
	case KindShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// SubscriberEvent describes one lifecycle transition of a subscriber.
type SubscriberEvent struct {
	Kind      Kind
	SessionID string
	Addr      string
	Tickers   []string
	At        time.Time

	// ReplacedSessionID is set on KindRegistered when the address already
	// had a session that this registration superseded.
	ReplacedSessionID string
}

// Sink receives lifecycle events. Implementations must not block.
type Sink interface {
	Publish(ev SubscriberEvent)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(SubscriberEvent) {}
