package model

// StrategyKind identifies one of the supported strategy variants
type StrategyKind string

// Strategy kind constants
const (
	StrategyDCA          StrategyKind = "dca"
	StrategyGrid         StrategyKind = "grid"
	StrategyArbitrage    StrategyKind = "arbitrage"
	StrategyMarketMaking StrategyKind = "market_making"
	StrategyMomentum     StrategyKind = "momentum"
	StrategyScalping     StrategyKind = "scalping"
)

// StrategyKinds returns every supported kind
func StrategyKinds() []StrategyKind {
	return []StrategyKind{
		StrategyDCA,
		StrategyGrid,
		StrategyArbitrage,
		StrategyMarketMaking,
		StrategyMomentum,
		StrategyScalping,
	}
}

// Valid reports whether k is a known strategy kind
func (k StrategyKind) Valid() bool {
	for _, known := range StrategyKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Grid modes
const (
	GridModePerLevel = "per_level"
	GridModeNearest  = "nearest"
)

// StrategyConfig holds the optional per-strategy parameters. Nil means "use the default".
type StrategyConfig struct {
	// DCA
	IntervalsPerPeriod *int `json:"intervals_per_period,omitempty"`
	IntervalSeconds    *int `json:"interval_seconds,omitempty"`

	// Grid
	GridLevels         *int     `json:"grid_levels,omitempty"`
	GridSpacingPercent *float64 `json:"grid_spacing_percent,omitempty"`
	GridMode           *string  `json:"grid_mode,omitempty"`

	// Arbitrage
	ArbitrageThresholdPercent *float64 `json:"arbitrage_threshold_percent,omitempty"`

	// Market making
	SpreadPercent *float64 `json:"spread_percent,omitempty"`

	// Momentum
	MomentumThresholdPercent *float64 `json:"momentum_threshold_percent,omitempty"`

	// Scalping
	ScalpAllocationPercent   *float64 `json:"scalp_allocation_percent,omitempty"`
	TakeProfitPercent        *float64 `json:"take_profit_percent,omitempty"`
	ObservationWindowSeconds *int     `json:"observation_window_seconds,omitempty"`
	PollIntervalMillis       *int     `json:"poll_interval_ms,omitempty"`
}

// Clone returns a deep copy of the config
func (c StrategyConfig) Clone() StrategyConfig {
	out := StrategyConfig{
		IntervalsPerPeriod:        cloneInt(c.IntervalsPerPeriod),
		IntervalSeconds:           cloneInt(c.IntervalSeconds),
		GridLevels:                cloneInt(c.GridLevels),
		GridSpacingPercent:        cloneFloat(c.GridSpacingPercent),
		ArbitrageThresholdPercent: cloneFloat(c.ArbitrageThresholdPercent),
		SpreadPercent:             cloneFloat(c.SpreadPercent),
		MomentumThresholdPercent:  cloneFloat(c.MomentumThresholdPercent),
		ScalpAllocationPercent:    cloneFloat(c.ScalpAllocationPercent),
		TakeProfitPercent:         cloneFloat(c.TakeProfitPercent),
		ObservationWindowSeconds:  cloneInt(c.ObservationWindowSeconds),
		PollIntervalMillis:        cloneInt(c.PollIntervalMillis),
	}
	if c.GridMode != nil {
		mode := *c.GridMode
		out.GridMode = &mode
	}
	return out
}

// IsZero reports whether no parameter is set
func (c StrategyConfig) IsZero() bool {
	return c == StrategyConfig{}
}

// IntOr returns *v or def when v is nil
func IntOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// FloatOr returns *v or def when v is nil
func FloatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// StringOr returns *v or def when v is nil
func StringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}
