package model

import "time"

type BotSummary struct {
	BotID            string       `json:"bot_id"`
	Strategy         StrategyKind `json:"strategy"`
	Status           BotStatus    `json:"status"`
	Pair             string       `json:"pair,omitempty"`
	TotalTrades      int          `json:"total_trades"`
	ProfitableTrades int          `json:"profitable_trades"`
	LosingTrades     int          `json:"losing_trades"`
	WinRate          float64      `json:"win_rate"`
	TotalPnL         float64      `json:"total_pnl"`
	TotalVolume      float64      `json:"total_volume"`
	AveragePnL       float64      `json:"average_pnl"`
	CurrentValue     float64      `json:"current_value"`
	ReturnPercent    float64      `json:"return_percent"`
	OpenBuys         int          `json:"open_buys"`
	Uptime           string       `json:"uptime,omitempty"`
	LastTradeAt      *time.Time   `json:"last_trade_at,omitempty"`
}

// NewBotSummary builds a summary from a bot snapshot and its ledger aggregates
func NewBotSummary(bot *Bot, perf Performance) BotSummary {
	summary := BotSummary{
		BotID:            bot.ID,
		Strategy:         bot.Strategy,
		Status:           bot.Status,
		Pair:             bot.Pair,
		TotalTrades:      perf.TotalTrades,
		ProfitableTrades: perf.ProfitableTrades,
		LosingTrades:     perf.TotalTrades - perf.ProfitableTrades,
		WinRate:          perf.WinRate,
		TotalPnL:         perf.TotalPnL,
		TotalVolume:      perf.TotalVolume,
		CurrentValue:     perf.CurrentValue,
		OpenBuys:         perf.OpenBuys,
		LastTradeAt:      perf.LastTradeAt,
	}

	if perf.TotalTrades > 0 {
		summary.AveragePnL = perf.TotalPnL / float64(perf.TotalTrades)
	}
	if bot.Investment > 0 {
		summary.ReturnPercent = perf.TotalPnL / bot.Investment * 100
	}

	// Uptime since the last status change while running
	if bot.Status == BotStatusRunning && !bot.UpdatedAt.IsZero() {
		summary.Uptime = time.Since(bot.UpdatedAt).Round(time.Second).String()
	}

	return summary
}
