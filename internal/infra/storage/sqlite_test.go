package storage

import (
	"path/filepath"
	"testing"
	"time"

	"quote_stream/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAndEndSession(t *testing.T) {
	s := setupTestDB(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.OpenSession(&domain.SubscriberSession{
		ID:           "s1",
		Addr:         "127.0.0.1:9001",
		Tickers:      "AAPL,NVDA",
		RegisteredAt: now,
	}))

	sess, err := s.GetSession("s1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.True(t, sess.IsOpen())
	assert.Equal(t, "AAPL,NVDA", sess.Tickers)

	ended := now.Add(5 * time.Second)
	require.NoError(t, s.EndSession("s1", domain.EndReasonEvicted, ended))

	sess, err = s.GetSession("s1")
	require.NoError(t, err)
	require.False(t, sess.IsOpen())
	assert.Equal(t, domain.EndReasonEvicted, sess.EndReason)
	assert.WithinDuration(t, ended, *sess.EndedAt, time.Millisecond)

	// A closed session keeps its first end reason.
	require.NoError(t, s.EndSession("s1", domain.EndReasonShutdown, ended.Add(time.Second)))
	sess, _ = s.GetSession("s1")
	assert.Equal(t, domain.EndReasonEvicted, sess.EndReason)
}

func TestGetSession_NotFound(t *testing.T) {
	s := setupTestDB(t)

	sess, err := s.GetSession("missing")
	assert.NoError(t, err)
	assert.Nil(t, sess)
}

func TestEndAllOpen(t *testing.T) {
	s := setupTestDB(t)
	now := time.Now()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.OpenSession(&domain.SubscriberSession{ID: id, Addr: "127.0.0.1:9001", RegisteredAt: now}))
	}
	require.NoError(t, s.EndSession("b", domain.EndReasonReplaced, now))

	n, err := s.EndAllOpen(domain.EndReasonShutdown, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	open, err := s.ListOpenSessions()
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := s.SessionsByAddr("127.0.0.1:9001")
	require.NoError(t, err)
	require.Len(t, all, 3)
	reasons := map[string]string{}
	for _, sess := range all {
		reasons[sess.ID] = sess.EndReason
	}
	assert.Equal(t, map[string]string{"a": "shutdown", "b": "replaced", "c": "shutdown"}, reasons)
}

func TestUpsertCatalog(t *testing.T) {
	s := setupTestDB(t)

	require.NoError(t, s.UpsertCatalog([]domain.CatalogTicker{
		{Symbol: "NVDA", Position: 1, HighLiquidity: true, UpdatedAt: time.Now()},
		{Symbol: "IBM", Position: 0, UpdatedAt: time.Now()},
	}))
	require.NoError(t, s.UpsertCatalog([]domain.CatalogTicker{
		{Symbol: "IBM", Position: 2, UpdatedAt: time.Now()},
	}))

	catalog, err := s.GetCatalog()
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, "NVDA", catalog[0].Symbol)
	assert.True(t, catalog[0].HighLiquidity)
	assert.Equal(t, "IBM", catalog[1].Symbol)
	assert.Equal(t, 2, catalog[1].Position)
}
