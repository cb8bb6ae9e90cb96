package engine

import (
	"quote_stream/internal/domain"
)

// Handoff is the one-slot channel between the generation loop and the
// broadcaster. Publishing never blocks: a snapshot the broadcaster has
// not taken yet is replaced by the newer one.
type Handoff struct {
	ch chan *domain.Snapshot
}

// NewHandoff creates an empty handoff.
func NewHandoff() *Handoff {
	return &Handoff{ch: make(chan *domain.Snapshot, 1)}
}

// Publish stores s as the pending snapshot and reports whether an
// unconsumed one was discarded. It must have a single caller.
func (h *Handoff) Publish(s *domain.Snapshot) (superseded bool) {
	for {
		select {
		case h.ch <- s:
			return superseded
		default:
		}
		select {
		case <-h.ch:
			superseded = true
		default:
		}
	}
}

// C is received from by the broadcaster.
func (h *Handoff) C() <-chan *domain.Snapshot {
	return h.ch
}
