package strategy

import (
	"context"

	"botdeck/backend/internal/model"
)

const defaultMarketMakingSpread = 0.1

// MarketMaking quotes both sides symmetrically around the current price
type MarketMaking struct{ base }

func (MarketMaking) Kind() model.StrategyKind { return model.StrategyMarketMaking }

func (MarketMaking) Validate(cfg model.StrategyConfig) error {
	return percentIn("spread_percent", cfg.SpreadPercent, false, 100)
}

// Quotes returns the bid and ask for price at spreadPercent total width
func Quotes(price, spreadPercent float64) (bid, ask float64) {
	half := spreadPercent / 200
	return price * (1 - half), price * (1 + half)
}

func (MarketMaking) Execute(ctx context.Context, env *Env) error {
	bot := env.Bot
	q, ok := env.quote(ctx)
	if !ok {
		return nil
	}

	bid, ask := Quotes(q.Price, model.FloatOr(bot.Config.SpreadPercent, defaultMarketMakingSpread))
	amount := bot.Investment / q.Price

	if _, err := env.submit(ctx, model.SideBuy, amount, bid, q.Venue); err != nil {
		return err
	}
	_, err := env.submit(ctx, model.SideSell, amount, ask, q.Venue)
	return err
}
