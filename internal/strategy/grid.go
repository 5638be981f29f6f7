package strategy

import (
	"context"
	"math"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/util"
)

const (
	defaultGridLevels  = 10
	defaultGridSpacing = 2.0
)

// Grid trades a band of price levels spaced evenly around the current price.
// In per_level mode every level trades each tick; in nearest mode only the
// level closest to the current price does.
type Grid struct{ base }

func (Grid) Kind() model.StrategyKind { return model.StrategyGrid }

func (Grid) Validate(cfg model.StrategyConfig) error {
	if err := positiveInt("grid_levels", cfg.GridLevels, 1, util.MaxGridLevels); err != nil {
		return err
	}
	if err := percentIn("grid_spacing_percent", cfg.GridSpacingPercent, false, 100); err != nil {
		return err
	}
	if cfg.GridMode != nil && *cfg.GridMode != model.GridModePerLevel && *cfg.GridMode != model.GridModeNearest {
		return util.ErrValidationf("grid_mode must be %q or %q", model.GridModePerLevel, model.GridModeNearest)
	}

	// Every level must stay above zero or the band would hold fewer than grid_levels prices
	n := model.IntOr(cfg.GridLevels, defaultGridLevels)
	spacing := model.FloatOr(cfg.GridSpacingPercent, defaultGridSpacing)
	if float64(n/2)*spacing >= 100 {
		return util.ErrValidationf("grid_levels/2 * grid_spacing_percent must be below 100, got %d levels at %g%%", n, spacing)
	}
	return nil
}

// GridLevels returns n prices spaced by spacingPercent around price, ascending.
// Non-positive levels are dropped; Validate rejects configs that produce them.
func GridLevels(price float64, n int, spacingPercent float64) []float64 {
	half := n / 2
	step := spacingPercent / 100
	levels := make([]float64, 0, n)
	for i := -half; i <= half; i++ {
		if i == 0 && n%2 == 0 {
			continue
		}
		level := price * (1 + float64(i)*step)
		if level > 0 {
			levels = append(levels, level)
		}
	}
	return levels
}

func (Grid) Execute(ctx context.Context, env *Env) error {
	bot := env.Bot
	q, ok := env.quote(ctx)
	if !ok {
		return nil
	}

	n := model.IntOr(bot.Config.GridLevels, defaultGridLevels)
	spacing := model.FloatOr(bot.Config.GridSpacingPercent, defaultGridSpacing)
	levels := GridLevels(q.Price, n, spacing)
	if len(levels) == 0 {
		return nil
	}

	if model.StringOr(bot.Config.GridMode, model.GridModePerLevel) == model.GridModeNearest {
		levels = []float64{nearestLevel(levels, q.Price)}
	}

	perLevel := bot.Investment / float64(n)
	for _, level := range levels {
		side := model.SideSell
		if q.Price <= level {
			side = model.SideBuy
		}
		if _, err := env.submit(ctx, side, perLevel/level, level, q.Venue); err != nil {
			return err
		}
	}
	return nil
}

func nearestLevel(levels []float64, price float64) float64 {
	best := levels[0]
	for _, l := range levels[1:] {
		if math.Abs(l-price) < math.Abs(best-price) {
			best = l
		}
	}
	return best
}
