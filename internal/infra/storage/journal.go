package storage

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"quote_stream/internal/domain"
	"quote_stream/internal/event"
)

// Journal records subscriber lifecycle events asynchronously. Publishing
// never blocks the caller: when the buffer is full the event is dropped.
// Journal failures are logged and never reach the delivery path.
type Journal struct {
	repo    domain.SessionRepository
	events  chan event.SubscriberEvent
	dropped atomic.Uint64
}

// NewJournal creates a journal buffering up to buffer events.
func NewJournal(repo domain.SessionRepository, buffer int) *Journal {
	if buffer < 1 {
		buffer = 1
	}
	return &Journal{
		repo:   repo,
		events: make(chan event.SubscriberEvent, buffer),
	}
}

// Publish enqueues ev without blocking.
func (j *Journal) Publish(ev event.SubscriberEvent) {
	select {
	case j.events <- ev:
	default:
		// DROP: journal is best-effort
		j.dropped.Add(1)
		slog.Warn("Journal buffer full, event dropped",
			slog.String("kind", ev.Kind.String()),
			slog.String("session_id", ev.SessionID))
	}
}

// Dropped is the number of events lost to a full buffer.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Run applies events until ctx is done.
func (j *Journal) Run(ctx context.Context) error {
	slog.Info("Session journal started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-j.events:
			j.apply(ev)
		}
	}
}

// Flush applies every buffered event and then ends whatever is still
// open with reason shutdown. Call it after Run has returned.
func (j *Journal) Flush() {
	for {
		select {
		case ev := <-j.events:
			j.apply(ev)
		default:
			n, err := j.repo.EndAllOpen(domain.EndReasonShutdown, time.Now())
			if err != nil {
				slog.Warn("Failed to close open sessions", slog.Any("error", err))
				return
			}
			if n > 0 {
				slog.Info("Closed open sessions", slog.Int64("count", n))
			}
			return
		}
	}
}

func (j *Journal) apply(ev event.SubscriberEvent) {
	var err error
	switch ev.Kind {
	case event.KindRegistered:
		if ev.ReplacedSessionID != "" {
			if err := j.repo.EndSession(ev.ReplacedSessionID, domain.EndReasonReplaced, ev.At); err != nil {
				slog.Warn("Failed to end replaced session",
					slog.String("session_id", ev.ReplacedSessionID),
					slog.Any("error", err))
			}
		}
		err = j.repo.OpenSession(&domain.SubscriberSession{
			ID:           ev.SessionID,
			Addr:         ev.Addr,
			Tickers:      strings.Join(ev.Tickers, ","),
			RegisteredAt: ev.At,
		})
	case event.KindEvicted:
		err = j.repo.EndSession(ev.SessionID, domain.EndReasonEvicted, ev.At)
	case event.KindShutdown:
		err = j.repo.EndSession(ev.SessionID, domain.EndReasonShutdown, ev.At)
	default:
		slog.Warn("Unknown journal event", slog.Any("kind", ev.Kind))
		return
	}
	if err != nil {
		slog.Warn("Journal write failed",
			slog.String("kind", ev.Kind.String()),
			slog.String("session_id", ev.SessionID),
			slog.Any("error", err))
	}
}

// Compile-time check
var _ event.Sink = (*Journal)(nil)
