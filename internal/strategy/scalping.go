package strategy

import (
	"context"
	"time"

	"botdeck/backend/internal/model"
)

const (
	defaultScalpAllocation   = 10.0
	defaultTakeProfit        = 0.2
	defaultObservationWindow = 10
	defaultPollIntervalMs    = 1000
)

// Scalping opens a small position each tick and watches the price for a short
// window, selling once the take-profit is reached. Positions that miss the
// window stay open and are re-checked on later ticks.
type Scalping struct{ base }

func (Scalping) Kind() model.StrategyKind { return model.StrategyScalping }

func (Scalping) Validate(cfg model.StrategyConfig) error {
	if err := percentIn("scalp_allocation_percent", cfg.ScalpAllocationPercent, false, 100); err != nil {
		return err
	}
	if err := percentIn("take_profit_percent", cfg.TakeProfitPercent, false, 100); err != nil {
		return err
	}
	if err := positiveInt("observation_window_seconds", cfg.ObservationWindowSeconds, 0, 300); err != nil {
		return err
	}
	return positiveInt("poll_interval_ms", cfg.PollIntervalMillis, 1, 60000)
}

func (Scalping) Execute(ctx context.Context, env *Env) error {
	bot := env.Bot
	takeProfit := model.FloatOr(bot.Config.TakeProfitPercent, defaultTakeProfit) / 100

	q, ok := env.quote(ctx)
	if !ok {
		return nil
	}

	if err := closeReachedScalps(ctx, env, q.Price, takeProfit); err != nil {
		return err
	}

	allocation := model.FloatOr(bot.Config.ScalpAllocationPercent, defaultScalpAllocation) / 100
	amount := bot.Investment * allocation / q.Price
	buy, err := env.submit(ctx, model.SideBuy, amount, q.Price, q.Venue)
	if err != nil {
		return err
	}

	target := buy.Price * (1 + takeProfit)
	window := time.Duration(model.IntOr(bot.Config.ObservationWindowSeconds, defaultObservationWindow)) * time.Second
	poll := time.Duration(model.IntOr(bot.Config.PollIntervalMillis, defaultPollIntervalMs)) * time.Millisecond

	price, hit := observe(ctx, env, target, window, poll)
	if hit {
		_, err := env.submit(ctx, model.SideSell, buy.Amount, price, q.Venue)
		return err
	}

	env.State.addScalp(ScalpPosition{Amount: buy.Amount, Price: buy.Price, OpenedAt: buy.Timestamp})
	return nil
}

// closeReachedScalps sells every open position whose take-profit price is reached
func closeReachedScalps(ctx context.Context, env *Env, price, takeProfit float64) error {
	open := env.State.OpenScalps()
	if len(open) == 0 {
		return nil
	}

	remaining := make([]ScalpPosition, 0, len(open))
	for i, p := range open {
		if price < p.Price*(1+takeProfit) {
			remaining = append(remaining, p)
			continue
		}
		if _, err := env.submit(ctx, model.SideSell, p.Amount, price, ""); err != nil {
			env.State.setScalps(append(remaining, open[i:]...))
			return err
		}
	}
	env.State.setScalps(remaining)
	return nil
}

// observe polls the price until it reaches target or the window closes.
// A zero window checks once.
func observe(ctx context.Context, env *Env, target float64, window, poll time.Duration) (float64, bool) {
	deadline := time.Now().Add(window)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if q, ok := env.liveQuote(ctx); ok && q.Price >= target {
			return q.Price, true
		}
		if !time.Now().Before(deadline) {
			return 0, false
		}
		select {
		case <-ctx.Done():
			return 0, false
		case <-ticker.C:
		}
	}
}
