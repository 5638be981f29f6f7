package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/service/market"
	"botdeck/backend/internal/util"
)

// trackingSource records how many reads overlap
type trackingSource struct {
	market.Source
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (s *trackingSource) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return market.Quote{}, ctx.Err()
	}
	return s.Source.Quote(ctx, symbol)
}

// panicSource blows up on every read
type panicSource struct {
	market.Source
}

func (panicSource) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	panic("feed exploded")
}

func TestDCAScenario(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	conn := e.connect(t)
	e.source.SetPrice("btc_usdt", 50, 0)
	bot := e.createBot(t, model.StrategyDCA, conn.ID, 1000)

	if _, err := e.Bots.Start(ctx, bot.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Scheduler.Wait()
	e.Scheduler.RunOnce(ctx)
	e.Scheduler.Wait()

	trades, err := e.Bots.Trades(ctx, bot.ID)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected exactly one buy, got %d", len(trades))
	}
	if trades[0].Side != model.SideBuy || !approxEqual(trades[0].Amount, 5) || trades[0].Price != 50 {
		t.Fatalf("unexpected trade %+v", trades[0])
	}
	if trades[0].OrderID == "" {
		t.Fatal("executor ack id should be recorded")
	}

	got, _ := e.Bots.Get(ctx, bot.ID)
	if got.TotalTrades != 1 || got.LastTradeAt == nil {
		t.Fatalf("unexpected bot performance %+v", got)
	}
	if e.notifier.tradeCount() != 1 {
		t.Fatalf("expected one trade_executed event, got %d", e.notifier.tradeCount())
	}
}

func TestAtMostOneDispatchPerBot(t *testing.T) {
	static := market.NewStaticSource()
	static.SetPrice("btc_usdt", 100, 0)
	src := &trackingSource{Source: static, delay: 100 * time.Millisecond}
	e := newTestEngineWith(t, newStores(), src)
	ctx := context.Background()
	conn := e.connect(t)
	bot := e.createBot(t, model.StrategyMarketMaking, conn.ID, 100)

	if _, err := e.Bots.Start(ctx, bot.ID); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	var launched atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			launched.Add(int32(e.Scheduler.RunOnce(ctx)))
		}()
	}
	wg.Wait()
	e.Scheduler.Wait()

	if launched.Load() != 0 {
		t.Fatalf("ticks during an in-flight dispatch must be skipped, %d launched", launched.Load())
	}
	if src.maxSeen.Load() != 1 {
		t.Fatalf("expected at most one concurrent dispatch, saw %d", src.maxSeen.Load())
	}

	// Once idle, the next tick dispatches again
	if n := e.Scheduler.RunOnce(ctx); n != 1 {
		t.Fatalf("expected one dispatch on an idle bot, got %d", n)
	}
	e.Scheduler.Wait()
	if got, _ := e.Bots.Get(ctx, bot.ID); got.TotalTrades != 4 {
		t.Fatalf("two market making dispatches should record 4 trades, got %d", got.TotalTrades)
	}
}

func TestDispatchFailureMarksOnlyThatBot(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	conn := e.connect(t)
	e.source.SetPrice("btc_usdt", 100, 10)

	live := e.createBot(t, model.StrategyMomentum, conn.ID, 100)
	paper := false
	if _, err := e.Bots.Update(ctx, live.ID, &model.BotRequest{IsPaperTrading: &paper}); err != nil {
		t.Fatal(err)
	}
	healthy := e.createBot(t, model.StrategyMomentum, conn.ID, 100)

	e.Bots.Start(ctx, live.ID)
	e.Bots.Start(ctx, healthy.ID)
	e.Scheduler.Wait()

	failed, _ := e.Bots.Get(ctx, live.ID)
	if failed.Status != model.BotStatusError || failed.ErrorMessage == nil {
		t.Fatalf("live bot without a gateway should fail, got %+v", failed)
	}
	ok, _ := e.Bots.Get(ctx, healthy.ID)
	if ok.Status != model.BotStatusRunning || ok.TotalTrades != 1 {
		t.Fatalf("healthy bot should keep running, got %+v", ok)
	}

	// Errored bots are not ticked until restarted
	if n := e.Scheduler.RunOnce(ctx); n != 1 {
		t.Fatalf("expected only the healthy bot to dispatch, got %d", n)
	}
	e.Scheduler.Wait()
}

func TestDispatchPanicIsRecovered(t *testing.T) {
	e := newTestEngineWith(t, newStores(), panicSource{Source: market.NewStaticSource()})
	ctx := context.Background()
	conn := e.connect(t)
	bot := e.createBot(t, model.StrategyMomentum, conn.ID, 100)

	e.Bots.Start(ctx, bot.ID)
	e.Scheduler.Wait()

	got, _ := e.Bots.Get(ctx, bot.ID)
	if got.Status != model.BotStatusError || got.ErrorMessage == nil {
		t.Fatalf("panicking dispatch should mark the bot errored, got %+v", got)
	}

	// Restarting from error re-checks the connection first
	if _, err := e.Connections.Disconnect(ctx, conn.ID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if _, err := e.Bots.Start(ctx, bot.ID); !util.IsPreconditionError(err) {
		t.Fatalf("restart on a disconnected exchange: expected precondition error, got %v", err)
	}
	if got, _ := e.Bots.Get(ctx, bot.ID); got.Status != model.BotStatusError {
		t.Fatalf("bot must stay errored, got %s", got.Status)
	}
	if _, err := e.Connections.Reconnect(ctx, conn.ID); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}

	// An explicit start leaves the error state
	restarted, err := e.Bots.Start(ctx, bot.ID)
	if err != nil || restarted.Status != model.BotStatusRunning || restarted.ErrorMessage != nil {
		t.Fatalf("restart: %+v %v", restarted, err)
	}
}

func TestStoppedBotIsNotDispatched(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	conn := e.connect(t)
	e.source.SetPrice("btc_usdt", 100, 10)
	bot := e.createBot(t, model.StrategyMomentum, conn.ID, 100)

	e.Bots.Start(ctx, bot.ID)
	e.Scheduler.Wait()
	e.Bots.Stop(ctx, bot.ID)

	if n := e.Scheduler.RunOnce(ctx); n != 0 {
		t.Fatalf("stopped bots must not be ticked, got %d", n)
	}
	if got, _ := e.Bots.Get(ctx, bot.ID); got.TotalTrades != 1 {
		t.Fatalf("expected the single trade from start, got %d", got.TotalTrades)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	e := newTestEngine(t)
	e.Scheduler.opts.TickInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Scheduler.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRestoreComesBackStopped(t *testing.T) {
	stores := newStores()
	first := newTestEngineWith(t, stores, market.NewStaticSource())
	ctx := context.Background()
	conn := first.connect(t)
	first.source.SetPrice("btc_usdt", 100, 10)
	bot := first.createBot(t, model.StrategyMomentum, conn.ID, 100)
	first.Bots.Start(ctx, bot.ID)
	first.Scheduler.Wait()

	second := newTestEngineWith(t, stores, market.NewStaticSource())
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := second.Bots.Get(ctx, bot.ID)
	if err != nil {
		t.Fatalf("restored bot: %v", err)
	}
	if got.Status != model.BotStatusStopped {
		t.Fatalf("restored bot should be stopped, got %s", got.Status)
	}
	if got.TotalTrades != 1 {
		t.Fatalf("trade history should be replayed, got %d", got.TotalTrades)
	}
	if s, ok := second.Connections.Status(conn.ID); !ok || s != model.ConnectionStatusConnected {
		t.Fatalf("connection should be restored, got %s %v", s, ok)
	}
	if _, err := second.Connections.Credentials(ctx, conn.ID, "user-1"); err != nil {
		t.Fatalf("restored credentials should decrypt: %v", err)
	}
}

func TestOrchestratorStartShutdown(t *testing.T) {
	e := newTestEngine(t)
	e.opts.ConnectionSyncInterval = 10 * time.Millisecond
	e.connect(t)

	e.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if e.prober.callCount() < 2 {
		t.Fatalf("periodic sync should have probed, got %d calls", e.prober.callCount())
	}
}

func TestNoDispatchAfterShutdown(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	conn := e.connect(t)
	e.source.SetPrice("btc_usdt", 100, 0)
	bot := e.createBot(t, model.StrategyMarketMaking, conn.ID, 100)

	e.Start(ctx)
	if _, err := e.Bots.Start(ctx, bot.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			e.Scheduler.Trigger(bot.ID)
		}
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	wg.Wait()

	before := e.notifier.tradeCount()
	e.Scheduler.Trigger(bot.ID)
	if n := e.Scheduler.RunOnce(ctx); n != 0 {
		t.Fatalf("no dispatch may start after shutdown, got %d", n)
	}
	e.Scheduler.Wait()
	if after := e.notifier.tradeCount(); after != before {
		t.Fatalf("trades recorded after shutdown: %d -> %d", before, after)
	}
}
