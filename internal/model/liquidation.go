package model

import "time"

// Side identifies which positions were liquidated.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// LiquidationEvent is a single decoded liquidation as delivered by a feed.
// Events are immutable once created and consumed exactly once by the
// cluster aggregator.
type LiquidationEvent struct {
	Exchange    string    `json:"exchange"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	NotionalUSD float64   `json:"notional_usd"`
	Price       float64   `json:"price"`
	ObservedAt  time.Time `json:"observed_at"`
}

// ClusterSnapshot describes an accumulation of same-symbol liquidations
// that crossed the alert threshold. Emitting a snapshot clears the
// symbol's window, so at most one snapshot can exist per accumulation.
type ClusterSnapshot struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	TotalUSD   float64   `json:"total_usd"`
	Price      float64   `json:"price"`
	EntryCount int       `json:"entry_count"`
	FiredAt    time.Time `json:"fired_at"`
}
