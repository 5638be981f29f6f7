package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botdeck/backend/internal/metrics"
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/logger"

	"github.com/google/uuid"
)

// TradeLedger owns every bot's append-only trade history and the performance
// aggregates derived from it. Writes for one bot are serialized by that bot's
// book lock; different bots never contend.
type TradeLedger struct {
	mu    sync.RWMutex
	books map[string]*book

	store repository.TradeStore
	log   *logger.Logger
	now   func() time.Time
}

type book struct {
	mu       sync.Mutex
	trades   []*model.Trade
	openBuys []*model.Trade // LIFO stack of unmatched buys
	perf     model.Performance
}

func NewTradeLedger(store repository.TradeStore) *TradeLedger {
	return &TradeLedger{
		books: make(map[string]*book),
		store: store,
		log:   logger.GetLogger().WithComponent("ledger"),
		now:   time.Now,
	}
}

// Open creates an empty book for botID. Opening an existing book is a no-op.
func (l *TradeLedger) Open(botID string, investment float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.books[botID]; ok {
		return
	}
	l.books[botID] = &book{perf: model.Performance{CurrentValue: investment}}
}

// Drop removes a bot's book and its persisted history
func (l *TradeLedger) Drop(ctx context.Context, botID string) {
	l.mu.Lock()
	delete(l.books, botID)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.DeleteByBot(ctx, botID); err != nil {
			metrics.PersistenceErrors.WithLabelValues("trade").Inc()
			l.log.Warnf("Failed to delete trade history for bot %s: %v", botID, err)
		}
	}
}

func (l *TradeLedger) book(botID string) (*book, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.books[botID]
	return b, ok
}

// RecordTrade appends one executed trade for botID
func (l *TradeLedger) RecordTrade(ctx context.Context, botID string, side model.TradeSide, amount, price float64) (*model.Trade, error) {
	return l.Record(ctx, botID, model.TradeIntent{Side: side, Amount: amount, Price: price}, "")
}

// Record appends an executed intent. Sells are matched against the most recent
// unmatched buy; the whole update is applied under the bot's book lock.
func (l *TradeLedger) Record(ctx context.Context, botID string, intent model.TradeIntent, orderID string) (*model.Trade, error) {
	if !intent.Side.Valid() {
		return nil, util.ErrValidationf("invalid trade side %q", intent.Side)
	}
	if !util.IsFinite(intent.Amount) || intent.Amount <= 0 {
		return nil, util.ErrValidation("Trade amount must be positive")
	}
	if !util.IsFinite(intent.Price) || intent.Price <= 0 {
		return nil, util.ErrValidation("Trade price must be positive")
	}

	b, ok := l.book(botID)
	if !ok {
		return nil, util.ErrNotFound(fmt.Sprintf("No ledger for bot %s", botID))
	}

	trade := &model.Trade{
		ID:        uuid.NewString(),
		BotID:     botID,
		Side:      intent.Side,
		Amount:    intent.Amount,
		Price:     intent.Price,
		Venue:     intent.Venue,
		OrderID:   orderID,
		Timestamp: l.now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.apply(trade)

	if l.store != nil {
		if err := l.store.Append(ctx, trade); err != nil {
			metrics.PersistenceErrors.WithLabelValues("trade").Inc()
			l.log.Warnf("Failed to persist trade %s for bot %s: %v", trade.ID, botID, err)
		}
	}

	metrics.TradesTotal.WithLabelValues(string(trade.Side)).Inc()
	metrics.TradeVolume.Add(trade.Notional())

	out := *trade
	return &out, nil
}

// apply folds one trade into the book. Caller holds b.mu.
func (b *book) apply(trade *model.Trade) {
	trade.RealizedPnL = nil
	notional := trade.Notional()

	switch trade.Side {
	case model.SideBuy:
		b.openBuys = append(b.openBuys, trade)
		b.perf.CurrentValue += notional
	case model.SideSell:
		if n := len(b.openBuys); n > 0 {
			matched := b.openBuys[n-1]
			b.openBuys = b.openBuys[:n-1]
			pnl := (trade.Price - matched.Price) * trade.Amount
			trade.RealizedPnL = &pnl
			b.perf.TotalPnL += pnl
			if pnl > 0 {
				b.perf.ProfitableTrades++
			}
		}
		b.perf.CurrentValue -= notional
	}

	b.trades = append(b.trades, trade)
	b.perf.TotalTrades++
	b.perf.TotalVolume += notional
	b.perf.WinRate = float64(b.perf.ProfitableTrades) / float64(b.perf.TotalTrades) * 100
	b.perf.OpenBuys = len(b.openBuys)
	ts := trade.Timestamp
	b.perf.LastTradeAt = &ts
}

// Replay rebuilds a book from persisted trades, replacing any existing one
func (l *TradeLedger) Replay(botID string, investment float64, trades []*model.Trade) {
	b := &book{perf: model.Performance{CurrentValue: investment}}
	for _, t := range trades {
		if t == nil || t.BotID != botID || !t.Side.Valid() {
			continue
		}
		c := *t
		b.apply(&c)
	}

	l.mu.Lock()
	l.books[botID] = b
	l.mu.Unlock()
}

// AdjustCapital shifts the current value after an investment change
func (l *TradeLedger) AdjustCapital(botID string, delta float64) {
	b, ok := l.book(botID)
	if !ok {
		return
	}
	b.mu.Lock()
	b.perf.CurrentValue += delta
	b.mu.Unlock()
}

// Trades returns a copy of the bot's trades in submission order
func (l *TradeLedger) Trades(botID string) ([]*model.Trade, error) {
	b, ok := l.book(botID)
	if !ok {
		return nil, util.ErrNotFound(fmt.Sprintf("No ledger for bot %s", botID))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*model.Trade, len(b.trades))
	for i, t := range b.trades {
		c := *t
		out[i] = &c
	}
	return out, nil
}

// Performance returns the bot's current aggregates
func (l *TradeLedger) Performance(botID string) (model.Performance, bool) {
	b, ok := l.book(botID)
	if !ok {
		return model.Performance{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	perf := b.perf
	if perf.LastTradeAt != nil {
		ts := *perf.LastTradeAt
		perf.LastTradeAt = &ts
	}
	return perf, true
}
