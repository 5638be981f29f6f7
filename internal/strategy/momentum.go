package strategy

import (
	"context"

	"botdeck/backend/internal/model"
)

const defaultMomentumThreshold = 5.0

// Momentum follows strong 24h moves in either direction
type Momentum struct{ base }

func (Momentum) Kind() model.StrategyKind { return model.StrategyMomentum }

func (Momentum) Validate(cfg model.StrategyConfig) error {
	return percentIn("momentum_threshold_percent", cfg.MomentumThresholdPercent, true, 1000)
}

func (Momentum) Execute(ctx context.Context, env *Env) error {
	bot := env.Bot
	q, ok := env.quote(ctx)
	if !ok {
		return nil
	}

	threshold := model.FloatOr(bot.Config.MomentumThresholdPercent, defaultMomentumThreshold)
	var side model.TradeSide
	switch {
	case q.Change24h > threshold:
		side = model.SideBuy
	case q.Change24h < -threshold:
		side = model.SideSell
	default:
		return nil
	}

	_, err := env.submit(ctx, side, bot.Investment/q.Price, q.Price, q.Venue)
	return err
}
