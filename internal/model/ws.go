package model

import "time"

// WSMessageType represents the type of WebSocket message
type WSMessageType string

const (
	MessageTypeBotUpdate        WSMessageType = "bot_update"
	MessageTypeTradeExecuted    WSMessageType = "trade_executed"
	MessageTypeConnectionUpdate WSMessageType = "connection_update"
	MessageTypeError            WSMessageType = "error"
	MessageTypePong             WSMessageType = "pong"
)

// WSMessage is the envelope for all WebSocket messages
type WSMessage struct {
	Type    WSMessageType `json:"type"`
	Payload interface{}   `json:"payload"`
}

// WSBotUpdatePayload represents a bot status/PnL update
type WSBotUpdatePayload struct {
	BotID        string    `json:"bot_id"`
	Status       BotStatus `json:"status"`
	TotalTrades  int       `json:"total_trades"`
	WinRate      float64   `json:"win_rate"` // Win rate percentage
	TotalPnL     float64   `json:"total_pnl"`
	CurrentValue float64   `json:"current_value"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// NewBotUpdatePayload builds an update payload from a bot snapshot
func NewBotUpdatePayload(bot *Bot) WSBotUpdatePayload {
	p := WSBotUpdatePayload{
		BotID:        bot.ID,
		Status:       bot.Status,
		TotalTrades:  bot.TotalTrades,
		WinRate:      bot.WinRate,
		TotalPnL:     bot.TotalPnL,
		CurrentValue: bot.CurrentValue,
		At:           time.Now(),
	}
	if bot.ErrorMessage != nil {
		p.Error = *bot.ErrorMessage
	}
	return p
}

// WSConnectionUpdatePayload represents a connection health change
type WSConnectionUpdatePayload struct {
	ConnectionID string           `json:"connection_id"`
	Status       ConnectionStatus `json:"status"`
	Balance      float64          `json:"balance"`
	At           time.Time        `json:"at"`
}
