package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/service/market"
	"botdeck/backend/pkg/crypto"
)

var errProbeRefused = errors.New("venue refused credentials")

// fakeProber fails the first failures calls, then succeeds with balance
type fakeProber struct {
	mu       sync.Mutex
	failures int
	always   bool
	balance  float64
	calls    int
	lastKey  string
}

func (p *fakeProber) Probe(ctx context.Context, exchange string, creds model.Credentials) (*ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastKey = creds.APIKey
	if p.always || p.calls <= p.failures {
		return nil, errProbeRefused
	}
	return &ProbeResult{Balance: p.balance}, nil
}

func (p *fakeProber) setAlways(v bool) {
	p.mu.Lock()
	p.always = v
	p.mu.Unlock()
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// recordingNotifier keeps every event it receives
type recordingNotifier struct {
	mu     sync.Mutex
	bots   []model.WSBotUpdatePayload
	trades []*model.Trade
	conns  []model.WSConnectionUpdatePayload
}

func (n *recordingNotifier) NotifyBotUpdate(_ context.Context, _ string, p model.WSBotUpdatePayload) {
	n.mu.Lock()
	n.bots = append(n.bots, p)
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifyTradeExecuted(_ context.Context, _ string, t *model.Trade) {
	n.mu.Lock()
	n.trades = append(n.trades, t)
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifyConnectionUpdate(_ context.Context, _ string, p model.WSConnectionUpdatePayload) {
	n.mu.Lock()
	n.conns = append(n.conns, p)
	n.mu.Unlock()
}

func (n *recordingNotifier) tradeCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.trades)
}

type testEngine struct {
	*Orchestrator
	source   *market.StaticSource
	prober   *fakeProber
	notifier *recordingNotifier
	bots     *repository.MemoryBotStore
	conns    *repository.MemoryConnectionStore
	trades   *repository.MemoryTradeStore
}

type engineStores struct {
	bots   *repository.MemoryBotStore
	conns  *repository.MemoryConnectionStore
	trades *repository.MemoryTradeStore
}

func newStores() engineStores {
	return engineStores{
		bots:   repository.NewMemoryBotStore(),
		conns:  repository.NewMemoryConnectionStore(),
		trades: repository.NewMemoryTradeStore(),
	}
}

func testCipher(t *testing.T) *crypto.Cipher {
	t.Helper()
	c, err := crypto.NewCipher(strings.Repeat("k", crypto.KeySize))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func newTestEngine(t *testing.T) *testEngine {
	return newTestEngineWith(t, newStores(), market.NewStaticSource())
}

func newTestEngineWith(t *testing.T, stores engineStores, source market.Source) *testEngine {
	t.Helper()
	prober := &fakeProber{balance: 2500}
	notifier := &recordingNotifier{}
	o := NewOrchestrator(Deps{
		Market:   source,
		Prober:   prober,
		Cipher:   testCipher(t),
		Bots:     stores.bots,
		Conns:    stores.conns,
		Trades:   stores.trades,
		Notifier: notifier,
	}, Options{
		TickInterval:      30 * time.Second,
		MarketDataTimeout: time.Second,
		ProbeTimeout:      time.Second,
		ProbeMaxAttempts:  1,
		SyncConcurrency:   2,
	})
	t.Cleanup(o.Scheduler.Wait)

	static, _ := source.(*market.StaticSource)
	return &testEngine{
		Orchestrator: o,
		source:       static,
		prober:       prober,
		notifier:     notifier,
		bots:         stores.bots,
		conns:        stores.conns,
		trades:       stores.trades,
	}
}

func cexRequest() *model.ConnectionRequest {
	return &model.ConnectionRequest{
		Name:      "main",
		Exchange:  "indodax",
		Kind:      model.ConnectionKindCEX,
		APIKey:    "key-1234567890",
		APISecret: "secret-abcdef",
	}
}

func (e *testEngine) connect(t *testing.T) *model.ExchangeConnection {
	t.Helper()
	conn, err := e.Connections.Connect(context.Background(), "user-1", cexRequest())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return conn
}

func (e *testEngine) createBot(t *testing.T, kind model.StrategyKind, connID string, investment float64) *model.Bot {
	t.Helper()
	bot, err := e.Bots.Create(context.Background(), "user-1", &model.BotRequest{
		Name:       "test bot",
		Strategy:   kind,
		ExchangeID: connID,
		Pair:       "btc_usdt",
		Investment: investment,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return bot
}
