package strategy

import (
	"context"
	"fmt"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/util"
)

// For returns the strategy implementing kind
func For(kind model.StrategyKind) (Strategy, error) {
	switch kind {
	case model.StrategyDCA:
		return DCA{}, nil
	case model.StrategyGrid:
		return Grid{}, nil
	case model.StrategyArbitrage:
		return Arbitrage{}, nil
	case model.StrategyMarketMaking:
		return MarketMaking{}, nil
	case model.StrategyMomentum:
		return Momentum{}, nil
	case model.StrategyScalping:
		return Scalping{}, nil
	}
	return nil, util.ErrValidationf("unknown strategy kind %q", kind)
}

// Validate checks that kind is known and cfg is acceptable for it
func Validate(kind model.StrategyKind, cfg model.StrategyConfig) error {
	s, err := For(kind)
	if err != nil {
		return err
	}
	return s.Validate(cfg)
}

// Dispatch runs one tick of the bot's strategy
func Dispatch(ctx context.Context, env *Env) error {
	s, err := For(env.Bot.Strategy)
	if err != nil {
		return util.ErrStrategyExecution("cannot dispatch bot", err)
	}
	if env.State == nil {
		env.State = NewState()
	}
	if err := s.Execute(ctx, env); err != nil {
		if util.IsStrategyExecutionError(err) {
			return err
		}
		return util.ErrStrategyExecution(fmt.Sprintf("%s tick failed", s.Kind()), err)
	}
	return nil
}

func positiveInt(name string, v *int, min, max int) error {
	if v == nil {
		return nil
	}
	if *v < min || (max > 0 && *v > max) {
		if max > 0 {
			return util.ErrValidationf("%s must be between %d and %d", name, min, max)
		}
		return util.ErrValidationf("%s must be at least %d", name, min)
	}
	return nil
}

func percentIn(name string, v *float64, allowZero bool, max float64) error {
	if v == nil {
		return nil
	}
	if !util.IsFinite(*v) || *v < 0 || (*v == 0 && !allowZero) || *v > max {
		if allowZero {
			return util.ErrValidationf("%s must be in [0, %v]", name, max)
		}
		return util.ErrValidationf("%s must be in (0, %v]", name, max)
	}
	return nil
}
