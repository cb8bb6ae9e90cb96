package domain

import (
	"time"
)

// Session end reasons recorded in the journal.
const (
	EndReasonEvicted  = "evicted"
	EndReasonReplaced = "replaced"
	EndReasonShutdown = "shutdown"
)

// SubscriberSession is one registration lifetime of a subscriber address.
type SubscriberSession struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	Addr         string     `gorm:"index" json:"addr"`
	Tickers      string     `json:"tickers"` // Comma separated, request order
	RegisteredAt time.Time  `json:"registered_at"`
	EndedAt      *time.Time `gorm:"index" json:"ended_at,omitempty"`
	EndReason    string     `json:"end_reason,omitempty"`
}

// IsOpen reports whether the session has not ended yet.
func (s *SubscriberSession) IsOpen() bool {
	return s.EndedAt == nil
}

// CatalogTicker is a ticker the generator tracks, in catalog order.
type CatalogTicker struct {
	Symbol        string    `gorm:"primaryKey" json:"symbol"`
	Position      int       `json:"position"`
	HighLiquidity bool      `json:"high_liquidity"`
	UpdatedAt     time.Time `json:"updated_at"`
}
