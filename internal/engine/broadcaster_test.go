package engine

import (
	"context"
	"encoding/json"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quote_stream/internal/domain"
	"quote_stream/internal/infra"
	"quote_stream/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanoutSharesSnapshot(t *testing.T) {
	reg := registry.New(1)
	a, _ := reg.Register(addrA, "s1", []string{"AAPL"})
	b, _ := reg.Register(addrB, "s2", []string{"NVDA"})
	m := &infra.Metrics{}
	bc := NewBroadcaster(NewHandoff(), reg, m, "")

	snap := &domain.Snapshot{Seq: 1}
	queued, dropped := bc.fanout(snap)
	assert.Equal(t, 2, queued)
	assert.Equal(t, 0, dropped)

	assert.Same(t, snap, <-a.C())
	assert.Same(t, snap, <-b.C())
	assert.Equal(t, uint64(1), bc.LastSeq())
}

func TestBroadcaster_FullMailboxIsSkippedNotEvicted(t *testing.T) {
	reg := registry.New(1)
	reg.Register(addrA, "s1", nil)
	m := &infra.Metrics{}
	bc := NewBroadcaster(NewHandoff(), reg, m, "")

	bc.fanout(&domain.Snapshot{Seq: 1})
	queued, dropped := bc.fanout(&domain.Snapshot{Seq: 2})

	assert.Equal(t, 0, queued)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, reg.Len(), "congestion never evicts")
	assert.Equal(t, []netip.AddrPort{addrA}, reg.ListLive())

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.DeliveriesQueued)
	assert.Equal(t, uint64(1), snap.DeliveriesDropped)
}

func TestBroadcaster_ClosedMailboxIsSkipped(t *testing.T) {
	reg := registry.New(1)
	mb, _ := reg.Register(addrA, "s1", nil)
	mb.Close()
	bc := NewBroadcaster(NewHandoff(), reg, &infra.Metrics{}, "")

	queued, dropped := bc.fanout(&domain.Snapshot{Seq: 1})
	assert.Zero(t, queued)
	assert.Zero(t, dropped)
}

func TestBroadcaster_RunDeliversFromHandoff(t *testing.T) {
	reg := registry.New(4)
	mb, _ := reg.Register(addrA, "s1", nil)
	h := NewHandoff()
	bc := NewBroadcaster(h, reg, &infra.Metrics{}, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bc.Run(ctx) }()

	h.Publish(&domain.Snapshot{Seq: 7})
	select {
	case got := <-mb.C():
		assert.Equal(t, uint64(7), got.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster did not stop")
	}
}

func TestBroadcaster_RegressionDumpsStateAndHalts(t *testing.T) {
	reg := registry.New(1)
	reg.Register(addrA, "s1", []string{"AAPL"})
	dump := filepath.Join(t.TempDir(), "dump.json")
	h := NewHandoff()
	bc := NewBroadcaster(h, reg, &infra.Metrics{}, dump)

	bc.lastSeq.Store(5)
	h.Publish(&domain.Snapshot{Seq: 3})

	assert.Panics(t, func() { _ = bc.Run(context.Background()) })

	raw, err := os.ReadFile(dump)
	require.NoError(t, err)

	var state struct {
		LastSeq     uint64           `json:"last_seq"`
		Subscribers []registry.Entry `json:"subscribers"`
	}
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, uint64(5), state.LastSeq)
	require.Len(t, state.Subscribers, 1)
	assert.Equal(t, addrA.String(), state.Subscribers[0].Addr)
	assert.Equal(t, []string{"AAPL"}, state.Subscribers[0].Tickers)
}
