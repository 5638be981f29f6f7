package market

import (
	"context"
	"time"

	"botdeck/backend/pkg/gateway"
)

// TickerClient is the subset of the gateway client used for prices
type TickerClient interface {
	GetTicker(ctx context.Context, pair string) (*gateway.Ticker, error)
	GetQuotes(ctx context.Context, pair string) ([]gateway.VenueQuote, error)
}

// GatewaySource reads prices from the trading gateway's public API
type GatewaySource struct {
	client TickerClient
}

func NewGatewaySource(client TickerClient) *GatewaySource {
	return &GatewaySource{client: client}
}

func (s *GatewaySource) Quote(ctx context.Context, symbol string) (Quote, error) {
	ticker, err := s.client.GetTicker(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Symbol:    symbol,
		Venue:     ticker.Venue,
		Price:     ticker.Last,
		Change24h: ticker.Change24h,
		At:        time.Now(),
	}, nil
}

func (s *GatewaySource) Quotes(ctx context.Context, symbol string) ([]Quote, error) {
	venueQuotes, err := s.client.GetQuotes(ctx, symbol)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	quotes := make([]Quote, 0, len(venueQuotes))
	for _, vq := range venueQuotes {
		quotes = append(quotes, Quote{Symbol: symbol, Venue: vq.Venue, Price: vq.Price, At: now})
	}
	return quotes, nil
}
