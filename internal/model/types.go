// Package model defines the domain types shared across the tradewatch
// client: instruments, identities, watchlist memberships, news articles,
// and paper-trading records.
package model

import "time"

// Instrument is a tradable security's market snapshot as served by the
// dashboard backend. Symbol is the unique key, always upper-case.
type Instrument struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Logo          string  `json:"logo"`
	Price         float64 `json:"price"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	MarketCap     float64 `json:"marketCap"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Sector        string  `json:"sector"`
}

// Identity is the authenticated user profile derived from the credential
// token and optionally enriched from the users endpoint.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"u_name"`
	Email string `json:"email"`
}

// Merge returns a copy of id with non-empty fields from other layered on
// top. Empty fields in other never clobber existing values.
func (id Identity) Merge(other Identity) Identity {
	out := id
	if other.ID != "" {
		out.ID = other.ID
	}
	if other.Name != "" {
		out.Name = other.Name
	}
	if other.Email != "" {
		out.Email = other.Email
	}
	return out
}

// Membership is the remote relation linking a user to a watched symbol.
// It is only held transiently during reconciliation.
type Membership struct {
	UserID  string `json:"user_id"`
	Symbol  string `json:"stock_symbol"`
	AddedAt string `json:"added_at"`
}

// Quote is a single historical price point for an instrument.
type Quote struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Article is a news item from the dashboard news feed.
type Article struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
}

// IndexSummary is the aggregate index snapshot (e.g. NASDAQ composite).
type IndexSummary struct {
	Index         string  `json:"index"`
	Last          float64 `json:"last"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	AsOf          string  `json:"as_of"`
}

// OrderSide distinguishes paper-trading buys from sells.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Order is a filled paper-trading order. The simulation fills immediately,
// so there is no pending state.
type Order struct {
	ID       string
	Symbol   string
	Side     OrderSide
	Qty      float64
	Price    float64
	FilledAt time.Time
}

// Position is a paper-trading holding for one symbol.
type Position struct {
	Symbol   string
	Qty      float64
	AvgPrice float64
}

// Account is a snapshot of the simulated account.
type Account struct {
	Cash   float64
	Equity float64
}

// Transaction is a historical account transaction from the backend.
type Transaction struct {
	ID     string  `json:"id"`
	UserID string  `json:"user_id"`
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Qty    float64 `json:"qty"`
	Price  float64 `json:"price"`
	At     string  `json:"at"`
}
