package model

import (
	"time"
)

// BotStatus is the lifecycle state of a bot
type BotStatus string

// Bot status constants
const (
	BotStatusStopped BotStatus = "stopped"
	BotStatusRunning BotStatus = "running"
	BotStatusPaused  BotStatus = "paused"
	BotStatusError   BotStatus = "error"
)

// botTransitions lists the allowed lifecycle moves. Stop is accepted from every
// non-stopped state; error only leaves through an explicit restart or stop.
var botTransitions = map[BotStatus][]BotStatus{
	BotStatusStopped: {BotStatusRunning},
	BotStatusRunning: {BotStatusStopped, BotStatusPaused, BotStatusError},
	BotStatusPaused:  {BotStatusRunning, BotStatusStopped},
	BotStatusError:   {BotStatusRunning, BotStatusStopped},
}

// CanTransition reports whether a bot may move from one status to another
func CanTransition(from, to BotStatus) bool {
	for _, s := range botTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Bot represents a configured trading strategy instance.
// Performance fields are filled from the trade ledger on every read and are
// never accepted from callers.
type Bot struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	Name       string         `json:"name"`
	Strategy   StrategyKind   `json:"strategy"`
	ExchangeID string         `json:"exchange_id"`
	Pair       string         `json:"pair"`
	Investment float64        `json:"investment"`
	Config     StrategyConfig `json:"config"`

	// Trading mode
	IsPaperTrading bool `json:"is_paper_trading"`

	// Status
	Status       BotStatus `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`

	// Statistics (owned by the trade ledger)
	CurrentValue float64    `json:"current_value"`
	TotalPnL     float64    `json:"total_pnl"`
	TotalVolume  float64    `json:"total_volume"`
	TotalTrades  int        `json:"total_trades"`
	WinRate      float64    `json:"win_rate"`
	LastTradeAt  *time.Time `json:"last_trade_at,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the bot
func (b *Bot) Clone() *Bot {
	c := *b
	c.Config = b.Config.Clone()
	if b.ErrorMessage != nil {
		msg := *b.ErrorMessage
		c.ErrorMessage = &msg
	}
	if b.LastTradeAt != nil {
		t := *b.LastTradeAt
		c.LastTradeAt = &t
	}
	return &c
}

// ApplyPerformance copies ledger aggregates onto the bot
func (b *Bot) ApplyPerformance(p Performance) {
	b.CurrentValue = p.CurrentValue
	b.TotalPnL = p.TotalPnL
	b.TotalVolume = p.TotalVolume
	b.TotalTrades = p.TotalTrades
	b.WinRate = p.WinRate
	b.LastTradeAt = nil
	if p.LastTradeAt != nil {
		t := *p.LastTradeAt
		b.LastTradeAt = &t
	}
}

// BotRequest represents the request to create or update a bot
type BotRequest struct {
	Name           string         `json:"name"`
	Strategy       StrategyKind   `json:"strategy"`
	ExchangeID     string         `json:"exchange_id"`
	Pair           string         `json:"pair"`
	Investment     float64        `json:"investment"`
	Config         StrategyConfig `json:"config"`
	IsPaperTrading *bool          `json:"is_paper_trading,omitempty"`
}

// BotAction is a lifecycle or edit action requested through updateBot
type BotAction string

const (
	BotActionStart  BotAction = "start"
	BotActionStop   BotAction = "stop"
	BotActionPause  BotAction = "pause"
	BotActionResume BotAction = "resume"
	BotActionUpdate BotAction = "update"
)

// BotUpdateRequest is the body of PATCH /bots/:id
type BotUpdateRequest struct {
	Action BotAction   `json:"action" binding:"required,oneof=start stop pause resume update"`
	Bot    *BotRequest `json:"bot,omitempty"`
}
