package quote

import (
	"math/rand/v2"
	"time"

	"quote_stream/internal/domain"
)

// DefaultPrice is the seed price of every tracked ticker.
const DefaultPrice = 1.0

// DefaultHighLiquidity is the conventional top-5 set that gets wider volume.
var DefaultHighLiquidity = []string{"AAPL", "GOOGL", "MSFT", "TSLA", "NVDA"}

// Rand is the random source used for ratios and volumes.
type Rand interface {
	Float64() float64
}

// Clock supplies the quote timestamp.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options tunes a Generator. Zero values fall back to defaults.
type Options struct {
	DefaultPrice  float64
	RatioMin      float64
	RatioMax      float64
	HighLiquidity []string
	Rand          Rand
	Clock         Clock
}

// Generator owns the per-ticker price state. It is not safe for concurrent
// use; the generation loop is its only caller.
type Generator struct {
	tickers  []string // tracked, first-seen catalog order
	prices   map[string]float64
	liquid   map[string]struct{}
	ratioMin float64
	ratioMax float64
	rnd      Rand
	clock    Clock
}

// NewGenerator tracks every distinct ticker of the catalog.
func NewGenerator(catalog []string, opts Options) *Generator {
	if opts.DefaultPrice <= 0 {
		opts.DefaultPrice = DefaultPrice
	}
	if opts.RatioMin <= 0 || opts.RatioMax <= opts.RatioMin {
		opts.RatioMin, opts.RatioMax = 0.5, 1.5
	}
	if opts.HighLiquidity == nil {
		opts.HighLiquidity = DefaultHighLiquidity
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}

	g := &Generator{
		prices:   make(map[string]float64, len(catalog)),
		liquid:   domain.TickerSet(opts.HighLiquidity),
		ratioMin: opts.RatioMin,
		ratioMax: opts.RatioMax,
		rnd:      opts.Rand,
		clock:    opts.Clock,
	}
	for _, t := range catalog {
		if _, dup := g.prices[t]; dup {
			continue
		}
		g.prices[t] = opts.DefaultPrice
		g.tickers = append(g.tickers, t)
	}
	return g
}

// Tickers returns the tracked tickers.
func (g *Generator) Tickers() []string {
	out := make([]string, len(g.tickers))
	copy(out, g.tickers)
	return out
}

// Price returns the current price of a tracked ticker.
func (g *Generator) Price(ticker string) (float64, bool) {
	p, ok := g.prices[ticker]
	return p, ok
}

// IsHighLiquidity reports whether the ticker draws from the wide volume range.
func (g *Generator) IsHighLiquidity(ticker string) bool {
	_, ok := g.liquid[ticker]
	return ok
}

// PerturbPrices applies one common random ratio to every tracked price.
// It returns the ratio used.
func (g *Generator) PerturbPrices() float64 {
	ratio := g.ratioMin + g.rnd.Float64()*(g.ratioMax-g.ratioMin)
	for t, p := range g.prices {
		g.prices[t] = p * ratio
	}
	return ratio
}

// GenerateSnapshot emits one quote per tracked ticker at the current prices.
func (g *Generator) GenerateSnapshot() []domain.Quote {
	ts := uint64(g.clock.Now().UnixMilli())
	quotes := make([]domain.Quote, 0, len(g.tickers))
	for _, t := range g.tickers {
		quotes = append(quotes, domain.Quote{
			Ticker:    t,
			Price:     g.prices[t],
			Volume:    g.volume(t),
			Timestamp: ts,
		})
	}
	return quotes
}

func (g *Generator) volume(ticker string) uint32 {
	if g.IsHighLiquidity(ticker) {
		return 1000 + uint32(g.rnd.Float64()*5000)
	}
	return 100 + uint32(g.rnd.Float64()*1000)
}
