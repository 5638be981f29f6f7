// Package market provides the price feeds consumed by strategies.
package market

import (
	"context"
	"errors"
	"time"
)

// ErrNoData is returned when a source has no price for a symbol
var ErrNoData = errors.New("no market data")

// Quote is a point-in-time price for a trading pair
type Quote struct {
	Symbol    string    `json:"symbol"`
	Venue     string    `json:"venue,omitempty"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"` // percent
	At        time.Time `json:"at"`
}

// Source supplies market data. Implementations may return stale data; callers
// treat any error as "no data".
type Source interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
	// Quotes returns one quote per venue for symbol
	Quotes(ctx context.Context, symbol string) ([]Quote, error)
}

// Cache is implemented by sources that serve stored quotes on behalf of another source
type Cache interface {
	Uncached() Source
}

// Live strips every cache layer from src. Polling loops that need a fresh
// price on each read use it.
func Live(src Source) Source {
	for {
		c, ok := src.(Cache)
		if !ok {
			return src
		}
		src = c.Uncached()
	}
}
