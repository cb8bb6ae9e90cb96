package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqRand replays fixed values, then repeats the last one.
type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	v := r.vals[r.i]
	if r.i < len(r.vals)-1 {
		r.i++
	}
	return v
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestNewGenerator_SeedsDefaultPrice(t *testing.T) {
	g := NewGenerator([]string{"AAPL", "NVDA", "AAPL", "ZZZ"}, Options{})

	assert.Equal(t, []string{"AAPL", "NVDA", "ZZZ"}, g.Tickers())
	for _, tk := range g.Tickers() {
		p, ok := g.Price(tk)
		require.True(t, ok)
		assert.Equal(t, DefaultPrice, p)
	}
}

func TestPerturbPrices_CommonRatio(t *testing.T) {
	rnd := &seqRand{vals: []float64{0.25}}
	g := NewGenerator([]string{"AAPL", "NVDA"}, Options{Rand: rnd, DefaultPrice: 2.0})

	ratio := g.PerturbPrices()
	assert.InDelta(t, 0.75, ratio, 1e-12)

	for _, tk := range []string{"AAPL", "NVDA"} {
		p, _ := g.Price(tk)
		assert.InDelta(t, 1.5, p, 1e-12, tk)
	}
}

func TestPerturbPrices_RatioRange(t *testing.T) {
	g := NewGenerator([]string{"AAPL"}, Options{Rand: &seqRand{vals: []float64{0, 0.999999}}})

	low := g.PerturbPrices()
	high := g.PerturbPrices()

	assert.InDelta(t, 0.5, low, 1e-12)
	assert.Less(t, high, 1.5)
	assert.GreaterOrEqual(t, high, 0.5)
}

func TestGenerateSnapshot(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	rnd := &seqRand{vals: []float64{0.5}}
	g := NewGenerator([]string{"AAPL", "XYZ"}, Options{Rand: rnd, Clock: fixedClock{now}})

	quotes := g.GenerateSnapshot()
	require.Len(t, quotes, 2)

	assert.Equal(t, "AAPL", quotes[0].Ticker)
	assert.Equal(t, uint32(1000+2500), quotes[0].Volume)
	assert.Equal(t, "XYZ", quotes[1].Ticker)
	assert.Equal(t, uint32(100+500), quotes[1].Volume)

	for _, q := range quotes {
		assert.Equal(t, uint64(1_700_000_000_123), q.Timestamp)
		assert.Equal(t, DefaultPrice, q.Price)
	}
}

func TestGenerateSnapshot_VolumeBounds(t *testing.T) {
	g := NewGenerator([]string{"TSLA", "ABC"}, Options{})

	for i := 0; i < 200; i++ {
		for _, q := range g.GenerateSnapshot() {
			if g.IsHighLiquidity(q.Ticker) {
				assert.GreaterOrEqual(t, q.Volume, uint32(1000))
				assert.Less(t, q.Volume, uint32(6000))
			} else {
				assert.GreaterOrEqual(t, q.Volume, uint32(100))
				assert.Less(t, q.Volume, uint32(1100))
			}
		}
	}
}

func TestGenerateSnapshot_EmptyCatalog(t *testing.T) {
	g := NewGenerator(nil, Options{})
	assert.Empty(t, g.GenerateSnapshot())
}
