package market

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StaticSource serves prices set by hand. Used for paper environments and tests.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	venues map[string]map[string]float64
	delay  time.Duration
}

func NewStaticSource() *StaticSource {
	return &StaticSource{
		quotes: make(map[string]Quote),
		venues: make(map[string]map[string]float64),
	}
}

// SetPrice sets the current price and 24h change for symbol
func (s *StaticSource) SetPrice(symbol string, price, change24h float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = Quote{Symbol: symbol, Price: price, Change24h: change24h, At: time.Now()}
}

// SetVenuePrice sets one venue's price for symbol
func (s *StaticSource) SetVenuePrice(symbol, venue string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.venues[symbol] == nil {
		s.venues[symbol] = make(map[string]float64)
	}
	s.venues[symbol][venue] = price
}

// SetDelay makes every read wait d (or until ctx is done)
func (s *StaticSource) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *StaticSource) wait(ctx context.Context) error {
	s.mu.RLock()
	d := s.delay
	s.mu.RUnlock()
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *StaticSource) Quote(ctx context.Context, symbol string) (Quote, error) {
	if err := s.wait(ctx); err != nil {
		return Quote{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoData
	}
	return q, nil
}

func (s *StaticSource) Quotes(ctx context.Context, symbol string) ([]Quote, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	venues := s.venues[symbol]
	quotes := make([]Quote, 0, len(venues))
	for venue, price := range venues {
		quotes = append(quotes, Quote{Symbol: symbol, Venue: venue, Price: price, At: time.Now()})
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Venue < quotes[j].Venue })
	return quotes, nil
}
