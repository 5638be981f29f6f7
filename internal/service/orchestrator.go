package service

import (
	"context"
	"sync"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/service/market"
	"botdeck/backend/pkg/crypto"
	"botdeck/backend/pkg/logger"
)

// Deps are the collaborators the engine is built from
type Deps struct {
	Market market.Source
	Prober Prober
	// Orders is optional; without it only paper bots can trade
	Orders   OrderGateway
	Cipher   *crypto.Cipher
	Bots     repository.BotStore
	Conns    repository.ConnectionStore
	Trades   repository.TradeStore
	Notifier Notifier
}

// Options tunes the engine
type Options struct {
	TickInterval           time.Duration
	MarketDataTimeout      time.Duration
	ProbeTimeout           time.Duration
	ProbeMaxAttempts       int
	ConnectionSyncInterval time.Duration
	SyncConcurrency        int
}

// Orchestrator owns the registries, ledger and scheduler of one engine instance
type Orchestrator struct {
	Bots        *BotRegistry
	Connections *ConnectionRegistry
	Ledger      *TradeLedger
	Scheduler   *Scheduler

	deps   Deps
	opts   Options
	log    *logger.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}

	ledger := NewTradeLedger(deps.Trades)
	conns := NewConnectionRegistry(deps.Prober, deps.Cipher, deps.Conns, deps.Notifier, ConnectionOptions{
		ProbeTimeout:     opts.ProbeTimeout,
		ProbeMaxAttempts: opts.ProbeMaxAttempts,
		SyncConcurrency:  opts.SyncConcurrency,
	})
	bots := NewBotRegistry(conns, ledger, deps.Bots, deps.Notifier)

	var live OrderExecutor
	if deps.Orders != nil {
		live = NewGatewayExecutor(deps.Orders, conns)
	}
	executor := NewRoutingExecutor(NewPaperExecutor(), live)

	scheduler := NewScheduler(bots, ledger, deps.Market, executor, deps.Notifier, SchedulerOptions{
		TickInterval:      opts.TickInterval,
		MarketDataTimeout: opts.MarketDataTimeout,
	})
	bots.SetTrigger(scheduler.Trigger)

	return &Orchestrator{
		Bots:        bots,
		Connections: conns,
		Ledger:      ledger,
		Scheduler:   scheduler,
		deps:        deps,
		opts:        opts,
		log:         logger.GetLogger().WithComponent("engine"),
	}
}

// Restore reloads connections, bots and trade history from the stores
func (o *Orchestrator) Restore(ctx context.Context) error {
	if o.deps.Conns != nil {
		conns, err := o.deps.Conns.ListAll(ctx)
		if err != nil {
			return err
		}
		o.Connections.Load(conns)
		o.log.Infof("Restored %d exchange connections", len(conns))
	}

	if o.deps.Bots == nil {
		return nil
	}
	bots, err := o.deps.Bots.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, bot := range bots {
		var trades []*model.Trade
		if o.deps.Trades != nil {
			trades, err = o.deps.Trades.ListByBot(ctx, bot.ID)
			if err != nil {
				o.log.Warnf("Failed to load trades for bot %s: %v", bot.ID, err)
			}
		}
		o.Ledger.Replay(bot.ID, bot.Investment, trades)
		o.Bots.Load(bot)
	}
	o.log.Infof("Restored %d bots", len(bots))
	return nil
}

// Start launches the scheduler and, when configured, periodic connection sync
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	o.Scheduler.Bind(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Scheduler.Run(ctx)
	}()

	if o.opts.ConnectionSyncInterval > 0 {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.Connections.RunSync(ctx, o.opts.ConnectionSyncInterval)
		}()
	}
}

// Shutdown stops the loops and waits for in-flight dispatches, or until ctx is done
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}
	o.Scheduler.Close()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		o.Scheduler.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.log.Info("Engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
