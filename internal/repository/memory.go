package repository

import (
	"context"
	"sort"
	"sync"

	"botdeck/backend/internal/model"
)

// MemoryBotStore keeps bots in process memory
type MemoryBotStore struct {
	mu   sync.RWMutex
	bots map[string]*model.Bot
}

func NewMemoryBotStore() *MemoryBotStore {
	return &MemoryBotStore{bots: make(map[string]*model.Bot)}
}

func (s *MemoryBotStore) Save(_ context.Context, bot *model.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots[bot.ID] = bot.Clone()
	return nil
}

func (s *MemoryBotStore) GetByID(_ context.Context, botID string) (*model.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bot, ok := s.bots[botID]
	if !ok {
		return nil, ErrNotFound
	}
	return bot.Clone(), nil
}

func (s *MemoryBotStore) Delete(_ context.Context, botID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bots[botID]; !ok {
		return ErrNotFound
	}
	delete(s.bots, botID)
	return nil
}

func (s *MemoryBotStore) ListAll(_ context.Context) ([]*model.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Bot, 0, len(s.bots))
	for _, bot := range s.bots {
		out = append(out, bot.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MemoryConnectionStore keeps connections in process memory
type MemoryConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*model.ExchangeConnection
}

func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{conns: make(map[string]*model.ExchangeConnection)}
}

func (s *MemoryConnectionStore) Save(_ context.Context, conn *model.ExchangeConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn.ID] = conn.Clone()
	return nil
}

func (s *MemoryConnectionStore) GetByID(_ context.Context, connectionID string) (*model.ExchangeConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.conns[connectionID]
	if !ok {
		return nil, ErrNotFound
	}
	return conn.Clone(), nil
}

func (s *MemoryConnectionStore) ListAll(_ context.Context) ([]*model.ExchangeConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ExchangeConnection, 0, len(s.conns))
	for _, conn := range s.conns {
		out = append(out, conn.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MemoryTradeStore keeps trade histories in process memory
type MemoryTradeStore struct {
	mu     sync.RWMutex
	trades map[string][]*model.Trade
}

func NewMemoryTradeStore() *MemoryTradeStore {
	return &MemoryTradeStore{trades: make(map[string][]*model.Trade)}
}

func (s *MemoryTradeStore) Append(_ context.Context, trade *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *trade
	s.trades[trade.BotID] = append(s.trades[trade.BotID], &t)
	return nil
}

func (s *MemoryTradeStore) ListByBot(_ context.Context, botID string) ([]*model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.trades[botID]
	out := make([]*model.Trade, len(src))
	for i, t := range src {
		c := *t
		out[i] = &c
	}
	return out, nil
}

func (s *MemoryTradeStore) DeleteByBot(_ context.Context, botID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trades, botID)
	return nil
}

var (
	_ BotStore        = (*MemoryBotStore)(nil)
	_ ConnectionStore = (*MemoryConnectionStore)(nil)
	_ TradeStore      = (*MemoryTradeStore)(nil)
	_ BotStore        = (*BotRepository)(nil)
	_ ConnectionStore = (*ConnectionRepository)(nil)
	_ TradeStore      = (*TradeRepository)(nil)
)
