package domain

import (
	"encoding/json"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Filter(t *testing.T) {
	snap := &Snapshot{Quotes: []Quote{
		{Ticker: "AAPL", Price: 100.0, Volume: 1200, Timestamp: 1},
		{Ticker: "NVDA", Price: 50.0, Volume: 3000, Timestamp: 1},
	}}

	t.Run("keeps requested tickers only", func(t *testing.T) {
		got := snap.Filter(TickerSet([]string{"AAPL"}))
		require.Len(t, got, 1)
		assert.Equal(t, snap.Quotes[0], got[0])
	})

	t.Run("unknown tickers never match", func(t *testing.T) {
		got := snap.Filter(TickerSet([]string{"MSFT"}))
		assert.Empty(t, got)
	})

	t.Run("empty result encodes as empty array", func(t *testing.T) {
		b, err := json.Marshal(snap.Filter(TickerSet(nil)))
		require.NoError(t, err)
		assert.Equal(t, "[]", string(b))
	})

	t.Run("nil snapshot", func(t *testing.T) {
		var s *Snapshot
		assert.NotNil(t, s.Filter(TickerSet([]string{"AAPL"})))
	})
}

func TestSubscriptionRequest_RoundTrip(t *testing.T) {
	req := SubscriptionRequest{
		Kind:    KindStream,
		Addr:    netip.MustParseAddrPort("127.0.0.1:34254"),
		Tickers: []string{"AAPL", "TSLA", "AAPL"},
	}

	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"STREAM","addr":"127.0.0.1:34254","tickers":["AAPL","TSLA","AAPL"]}`, string(b))

	var decoded SubscriptionRequest
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, req, decoded)
}

func TestSubscriptionResponse_RoundTrip(t *testing.T) {
	for _, resp := range []SubscriptionResponse{OkResponse(), ErrorResponse(MsgUnsupportedCommand)} {
		b, err := json.Marshal(resp)
		require.NoError(t, err)

		var decoded SubscriptionResponse
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, resp, decoded)
	}

	b, _ := json.Marshal(ErrorResponse(MsgUnsupportedCommand))
	assert.JSONEq(t, `{"status":"Error","message":"Unsupported command"}`, string(b))
}

func TestNormalizeAddr(t *testing.T) {
	mapped := netip.MustParseAddrPort("[::ffff:127.0.0.1]:9000")
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:9000"), NormalizeAddr(mapped))
}
