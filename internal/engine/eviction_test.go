package engine

import (
	"context"
	"testing"
	"time"

	"quote_stream/internal/event"
	"quote_stream/internal/infra"
	"quote_stream/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictionMonitor_ScanEvictsSilentSubscriber(t *testing.T) {
	clock := newManualClock()
	reg := registry.New(1, registry.WithClock(clock.Now))
	mb, _ := reg.Register(addrA, "s1", []string{"AAPL"})
	reg.Register(addrB, "s2", nil)

	sink := &recordingSink{}
	m := &infra.Metrics{}
	em := NewEvictionMonitor(reg, 5*time.Second, time.Hour, sink, m)
	em.now = clock.Now

	clock.Advance(3 * time.Second)
	reg.Touch(addrB)
	clock.Advance(3 * time.Second)

	assert.Equal(t, 1, em.Scan())
	assert.True(t, mb.Closed())
	_, ok := reg.Lookup(addrA)
	assert.False(t, ok)
	_, ok = reg.Lookup(addrB)
	assert.True(t, ok, "recently pinged subscriber survives")

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, event.KindEvicted, events[0].Kind)
	assert.Equal(t, "s1", events[0].SessionID)
	assert.Equal(t, addrA.String(), events[0].Addr)
	assert.Equal(t, []string{"AAPL"}, events[0].Tickers)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.Evictions)
	assert.Equal(t, int32(1), snap.ActiveSubscribers)
}

func TestEvictionMonitor_NothingExpired(t *testing.T) {
	reg := registry.New(1)
	reg.Register(addrA, "s1", nil)
	sink := &recordingSink{}
	em := NewEvictionMonitor(reg, time.Minute, time.Hour, sink, &infra.Metrics{})

	assert.Zero(t, em.Scan())
	assert.Empty(t, sink.Events())
}

func TestEvictionMonitor_RunEvictsAndStops(t *testing.T) {
	reg := registry.New(1)
	mb, _ := reg.Register(addrA, "s1", nil)
	em := NewEvictionMonitor(reg, 30*time.Millisecond, 5*time.Millisecond, nil, &infra.Metrics{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- em.Run(ctx) }()

	require.Eventually(t, mb.Closed, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, reg.Len())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
