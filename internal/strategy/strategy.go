// Package strategy implements the per-kind tick logic run by the scheduler.
//
// Every kind in model.StrategyKinds maps to exactly one Strategy. Strategies
// never mutate bots or the ledger directly: they read market data and hand
// trade intents to Env.Submit.
package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/service/market"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/logger"
)

// Strategy is one kind's tick behaviour. The interface is sealed; the set of
// implementations is closed.
type Strategy interface {
	Kind() model.StrategyKind
	// Validate checks the kind-specific parameters of a bot config
	Validate(cfg model.StrategyConfig) error
	// Execute runs one tick. A market data gap is not an error.
	Execute(ctx context.Context, env *Env) error
	sealed()
}

// SubmitFunc executes and records one trade intent
type SubmitFunc func(ctx context.Context, intent model.TradeIntent) (*model.Trade, error)

// Env is everything a strategy may use during one dispatch
type Env struct {
	Bot    *model.Bot
	Market market.Source
	// LiveMarket serves reads that must not hit a quote cache. Market is used when nil.
	LiveMarket market.Source
	State      *State
	Submit     SubmitFunc
	Log        *logger.Logger

	// TickInterval is the scheduler period, used as the default DCA interval
	TickInterval time.Duration
	// DataTimeout bounds each market data read
	DataTimeout time.Duration
	Now         func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger() *logger.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logger.Nop()
}

// quote reads the current quote for the bot's pair. ok is false on any error,
// timeout or unusable price.
func (e *Env) quote(ctx context.Context) (market.Quote, bool) {
	return e.quoteFrom(ctx, e.Market)
}

// liveQuote is quote read past any cache
func (e *Env) liveQuote(ctx context.Context) (market.Quote, bool) {
	if e.LiveMarket != nil {
		return e.quoteFrom(ctx, e.LiveMarket)
	}
	return e.quoteFrom(ctx, e.Market)
}

func (e *Env) quoteFrom(ctx context.Context, src market.Source) (market.Quote, bool) {
	qctx, cancel := e.dataContext(ctx)
	defer cancel()

	q, err := src.Quote(qctx, e.Bot.Pair)
	if err != nil {
		e.logger().Debugf("No market data for %s: %v", e.Bot.Pair, err)
		return market.Quote{}, false
	}
	if !util.IsUsablePrice(q.Price) {
		e.logger().Debugf("Unusable price for %s: %v", e.Bot.Pair, q.Price)
		return market.Quote{}, false
	}
	return q, true
}

func (e *Env) quotes(ctx context.Context) []market.Quote {
	qctx, cancel := e.dataContext(ctx)
	defer cancel()

	quotes, err := e.Market.Quotes(qctx, e.Bot.Pair)
	if err != nil {
		e.logger().Debugf("No venue quotes for %s: %v", e.Bot.Pair, err)
		return nil
	}
	usable := quotes[:0:0]
	for _, q := range quotes {
		if util.IsUsablePrice(q.Price) {
			usable = append(usable, q)
		}
	}
	return usable
}

func (e *Env) dataContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.DataTimeout > 0 {
		return context.WithTimeout(ctx, e.DataTimeout)
	}
	return context.WithCancel(ctx)
}

// submit hands an intent to the executor, turning any failure into a strategy execution error
func (e *Env) submit(ctx context.Context, side model.TradeSide, amount, price float64, venue string) (*model.Trade, error) {
	if !util.IsFinite(amount) || amount <= util.DustAmount {
		return nil, util.ErrStrategyExecution(
			fmt.Sprintf("%s strategy produced invalid amount", e.Bot.Strategy),
			fmt.Errorf("amount %v", amount))
	}
	trade, err := e.Submit(ctx, model.TradeIntent{Side: side, Amount: amount, Price: price, Venue: venue})
	if err != nil {
		if util.IsStrategyExecutionError(err) {
			return nil, err
		}
		return nil, util.ErrStrategyExecution(fmt.Sprintf("failed to submit %s trade", side), err)
	}
	return trade, nil
}

// State holds per-bot runtime data that survives between ticks
type State struct {
	mu     sync.Mutex
	scalps []ScalpPosition
}

// NewState creates empty runtime state
func NewState() *State {
	return &State{}
}

// ScalpPosition is a scalping buy still waiting for its take-profit
type ScalpPosition struct {
	Amount   float64   `json:"amount"`
	Price    float64   `json:"price"`
	OpenedAt time.Time `json:"opened_at"`
}

// OpenScalps returns a copy of the open scalping positions
func (s *State) OpenScalps() []ScalpPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ScalpPosition(nil), s.scalps...)
}

func (s *State) setScalps(p []ScalpPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalps = p
}

func (s *State) addScalp(p ScalpPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalps = append(s.scalps, p)
}

type base struct{}

func (base) sealed() {}
