package strategy

import (
	"context"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/util"
)

const defaultArbitrageThreshold = 0.5

// Arbitrage buys at the cheapest venue and sells at the dearest one when the
// spread between them reaches the threshold.
type Arbitrage struct{ base }

func (Arbitrage) Kind() model.StrategyKind { return model.StrategyArbitrage }

func (Arbitrage) Validate(cfg model.StrategyConfig) error {
	return percentIn("arbitrage_threshold_percent", cfg.ArbitrageThresholdPercent, true, 100)
}

func (Arbitrage) Execute(ctx context.Context, env *Env) error {
	bot := env.Bot
	quotes := env.quotes(ctx)
	if len(quotes) < 2 {
		return nil
	}

	low, high := quotes[0], quotes[0]
	for _, q := range quotes[1:] {
		if q.Price < low.Price {
			low = q
		}
		if q.Price > high.Price {
			high = q
		}
	}

	spread := util.PercentChange(low.Price, high.Price)
	threshold := model.FloatOr(bot.Config.ArbitrageThresholdPercent, defaultArbitrageThreshold)
	if spread < threshold || high.Price == low.Price {
		return nil
	}

	amount := bot.Investment / 2 / low.Price
	if _, err := env.submit(ctx, model.SideBuy, amount, low.Price, low.Venue); err != nil {
		return err
	}
	_, err := env.submit(ctx, model.SideSell, amount, high.Price, high.Venue)
	return err
}
