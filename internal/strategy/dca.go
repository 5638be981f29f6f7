package strategy

import (
	"context"
	"time"

	"botdeck/backend/internal/model"
)

const (
	defaultDCAIntervals = 4
	// Scheduler jitter allowed when checking whether an interval has elapsed
	dcaSlack = time.Second
)

// DCA buys a fixed slice of the investment once per interval
type DCA struct{ base }

func (DCA) Kind() model.StrategyKind { return model.StrategyDCA }

func (DCA) Validate(cfg model.StrategyConfig) error {
	if err := positiveInt("intervals_per_period", cfg.IntervalsPerPeriod, 1, 10000); err != nil {
		return err
	}
	return positiveInt("interval_seconds", cfg.IntervalSeconds, 1, 0)
}

func (DCA) Execute(ctx context.Context, env *Env) error {
	bot := env.Bot
	if !dcaDue(bot, env) {
		return nil
	}

	q, ok := env.quote(ctx)
	if !ok {
		return nil
	}

	intervals := model.IntOr(bot.Config.IntervalsPerPeriod, defaultDCAIntervals)
	amount := bot.Investment / float64(intervals) / q.Price
	_, err := env.submit(ctx, model.SideBuy, amount, q.Price, q.Venue)
	return err
}

func dcaDue(bot *model.Bot, env *Env) bool {
	if bot.LastTradeAt == nil {
		return true
	}
	interval := env.TickInterval
	if bot.Config.IntervalSeconds != nil {
		interval = time.Duration(*bot.Config.IntervalSeconds) * time.Second
	}
	return env.now().Sub(*bot.LastTradeAt) >= interval-dcaSlack
}
