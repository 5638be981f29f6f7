package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botdeck/backend/internal/metrics"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/service/market"
	"botdeck/backend/internal/strategy"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/logger"
)

// SchedulerOptions configures the tick loop
type SchedulerOptions struct {
	TickInterval      time.Duration
	MarketDataTimeout time.Duration
}

// Scheduler drives one strategy dispatch per running bot on every tick.
// Dispatches for the same bot never overlap; a bot still busy from an
// earlier dispatch is skipped.
type Scheduler struct {
	bots     *BotRegistry
	ledger   *TradeLedger
	market   market.Source
	executor OrderExecutor
	notifier Notifier
	opts     SchedulerOptions
	log      *logger.Logger

	// baseMu guards base and closed, and is held across wg.Add so Close
	// orders every launch before Wait
	baseMu sync.RWMutex
	base   context.Context
	closed bool
	wg     sync.WaitGroup
}

func NewScheduler(bots *BotRegistry, ledger *TradeLedger, source market.Source, executor OrderExecutor, notifier Notifier, opts SchedulerOptions) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 30 * time.Second
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Scheduler{
		bots:     bots,
		ledger:   ledger,
		market:   source,
		executor: executor,
		notifier: notifier,
		opts:     opts,
		log:      logger.GetLogger().WithComponent("scheduler"),
		base:     context.Background(),
	}
}

// Bind sets the context that dispatches started by Trigger inherit
func (s *Scheduler) Bind(ctx context.Context) {
	s.baseMu.Lock()
	s.base = ctx
	s.baseMu.Unlock()
}

// Close stops the scheduler from launching dispatches. Wait may be called
// safely once Close has returned.
func (s *Scheduler) Close() {
	s.baseMu.Lock()
	s.closed = true
	s.baseMu.Unlock()
}

// Run ticks until ctx is cancelled. Dispatches started by Trigger also
// inherit ctx from this point on.
func (s *Scheduler) Run(ctx context.Context) {
	s.Bind(ctx)

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	s.log.Infof("Scheduler started (tick every %s)", s.opts.TickInterval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one tick and returns how many dispatches it launched
func (s *Scheduler) RunOnce(ctx context.Context) int {
	metrics.TicksTotal.Inc()
	launched := 0
	for _, id := range s.bots.RunningIDs() {
		if s.launch(ctx, id) {
			launched++
		}
	}
	return launched
}

// Trigger launches one dispatch for botID outside the regular tick
func (s *Scheduler) Trigger(botID string) {
	s.baseMu.RLock()
	ctx := s.base
	s.baseMu.RUnlock()
	s.launch(ctx, botID)
}

// Wait blocks until every launched dispatch has finished
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) launch(ctx context.Context, botID string) bool {
	entry, ok := s.bots.tryAcquire(botID)
	if !ok {
		if bot, err := s.bots.Get(ctx, botID); err == nil {
			s.log.Debugf("Bot %s still busy, skipping dispatch", botID)
			metrics.ObserveDispatch(string(bot.Strategy), metrics.ResultSkipped, time.Now())
		}
		return false
	}

	s.baseMu.RLock()
	if s.closed || ctx.Err() != nil || s.base.Err() != nil {
		s.baseMu.RUnlock()
		entry.release()
		return false
	}
	s.wg.Add(1)
	s.baseMu.RUnlock()

	go func() {
		defer s.wg.Done()
		defer entry.release()
		s.dispatch(ctx, entry)
	}()
	return true
}

func (s *Scheduler) dispatch(ctx context.Context, entry *botEntry) {
	bot, state, ok := s.bots.dispatchTarget(entry)
	if !ok {
		return
	}

	started := time.Now()
	kind := string(bot.Strategy)
	var traded bool

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = util.ErrStrategyExecution("strategy panicked", fmt.Errorf("%v", p))
			}
		}()

		env := &strategy.Env{
			Bot:          bot,
			Market:       s.market,
			LiveMarket:   market.Live(s.market),
			State:        state,
			Log:          s.log.WithField("bot_id", bot.ID),
			TickInterval: s.opts.TickInterval,
			DataTimeout:  s.opts.MarketDataTimeout,
			Submit: func(ctx context.Context, intent model.TradeIntent) (*model.Trade, error) {
				trade, err := s.execute(ctx, bot, intent)
				if err == nil {
					traded = true
				}
				return trade, err
			},
		}
		return strategy.Dispatch(ctx, env)
	}()

	if err != nil {
		metrics.ObserveDispatch(kind, metrics.ResultError, started)
		if ctx.Err() != nil {
			s.log.Warnf("Dispatch for bot %s interrupted by shutdown: %v", bot.ID, err)
			return
		}
		s.log.WithFields(map[string]interface{}{
			"bot_id":   bot.ID,
			"strategy": kind,
		}).Error("Strategy dispatch failed", err)
		s.bots.MarkError(ctx, bot.ID, err)
		return
	}

	metrics.ObserveDispatch(kind, metrics.ResultOK, started)
	if traded {
		if snap, err := s.bots.Get(ctx, bot.ID); err == nil {
			s.notifier.NotifyBotUpdate(ctx, snap.OwnerID, model.NewBotUpdatePayload(snap))
		}
	}
}

// execute places an intent through the executor and records the fill in the ledger
func (s *Scheduler) execute(ctx context.Context, bot *model.Bot, intent model.TradeIntent) (*model.Trade, error) {
	ack, err := s.executor.Execute(ctx, bot, intent)
	if err != nil {
		return nil, err
	}

	filled := intent
	if ack.Price > 0 {
		filled.Price = ack.Price
	}
	if ack.Amount > 0 {
		filled.Amount = ack.Amount
	}

	trade, err := s.ledger.Record(ctx, bot.ID, filled, ack.OrderID)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyTradeExecuted(ctx, bot.OwnerID, trade)
	return trade, nil
}
