package model

import (
	"time"
)

// TradeSide is buy or sell
type TradeSide string

// Trade side constants
const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Valid reports whether s is buy or sell
func (s TradeSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is an immutable record of one executed leg
type Trade struct {
	ID      string    `json:"id"`
	BotID   string    `json:"bot_id"`
	Side    TradeSide `json:"side"`
	Amount  float64   `json:"amount"`
	Price   float64   `json:"price"`
	Venue   string    `json:"venue,omitempty"`
	OrderID string    `json:"order_id,omitempty"`

	// Present only on a sell that closed an earlier buy
	RealizedPnL *float64 `json:"realized_pnl,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Notional returns amount * price
func (t *Trade) Notional() float64 {
	return t.Amount * t.Price
}

// Profitable reports whether the trade realized a positive P&L
func (t *Trade) Profitable() bool {
	return t.RealizedPnL != nil && *t.RealizedPnL > 0
}

// TradeIntent is a trade a strategy wants to execute
type TradeIntent struct {
	Side   TradeSide `json:"side"`
	Amount float64   `json:"amount"`
	Price  float64   `json:"price"`
	Venue  string    `json:"venue,omitempty"`
}

// Performance is the aggregate view derived from a bot's trades
type Performance struct {
	CurrentValue     float64    `json:"current_value"`
	TotalPnL         float64    `json:"total_pnl"`
	TotalVolume      float64    `json:"total_volume"`
	TotalTrades      int        `json:"total_trades"`
	ProfitableTrades int        `json:"profitable_trades"`
	WinRate          float64    `json:"win_rate"`
	OpenBuys         int        `json:"open_buys"`
	LastTradeAt      *time.Time `json:"last_trade_at,omitempty"`
}
