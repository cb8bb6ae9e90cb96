package registry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quote_stream/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_OfferFullAndClosed(t *testing.T) {
	mb := newMailbox(addrA, "s1", []string{"AAPL"}, 1, time.Now())
	snap := &domain.Snapshot{Seq: 1}

	require.NoError(t, mb.Offer(snap))
	assert.ErrorIs(t, mb.Offer(snap), ErrMailboxFull)
	assert.Equal(t, 1, mb.Len())

	assert.True(t, mb.Close())
	assert.ErrorIs(t, mb.Offer(snap), ErrMailboxClosed)

	// Buffered snapshot is still drained before end-of-stream.
	got, open := <-mb.C()
	assert.True(t, open)
	assert.Same(t, snap, got)
	_, open = <-mb.C()
	assert.False(t, open)
}

func TestMailbox_CloseExactlyOnce(t *testing.T) {
	mb := newMailbox(addrA, "s1", nil, 1, time.Now())

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if mb.Close() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMailbox_OfferRacesClose(t *testing.T) {
	for i := 0; i < 100; i++ {
		mb := newMailbox(addrA, "s1", nil, 4, time.Now())
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = mb.Offer(&domain.Snapshot{Seq: uint64(j)})
			}
		}()
		go func() {
			defer wg.Done()
			mb.Close()
		}()
		wg.Wait()
	}
}

func TestMailbox_TickersAreCopied(t *testing.T) {
	tickers := []string{"AAPL"}
	mb := newMailbox(addrA, "s1", tickers, 1, time.Now())
	tickers[0] = "XXX"

	assert.Equal(t, []string{"AAPL"}, mb.Tickers())
	assert.Contains(t, mb.Wanted(), "AAPL")
}
