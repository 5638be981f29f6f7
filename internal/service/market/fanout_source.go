package market

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FanoutSource builds multi-venue quotes by querying one Source per venue
// concurrently. Venues that fail are left out of the result.
type FanoutSource struct {
	primary string
	venues  map[string]Source
}

// NewFanoutSource creates a fan-out source; primary names the venue used for Quote
func NewFanoutSource(primary string, venues map[string]Source) *FanoutSource {
	return &FanoutSource{primary: primary, venues: venues}
}

func (s *FanoutSource) Quote(ctx context.Context, symbol string) (Quote, error) {
	src, ok := s.venues[s.primary]
	if !ok {
		return Quote{}, ErrNoData
	}
	q, err := src.Quote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	q.Venue = s.primary
	return q, nil
}

func (s *FanoutSource) Quotes(ctx context.Context, symbol string) ([]Quote, error) {
	var (
		mu     sync.Mutex
		quotes = make([]Quote, 0, len(s.venues))
	)

	g, gctx := errgroup.WithContext(ctx)
	for venue, src := range s.venues {
		venue, src := venue, src
		g.Go(func() error {
			q, err := src.Quote(gctx, symbol)
			if err != nil {
				return nil
			}
			q.Venue = venue
			mu.Lock()
			quotes = append(quotes, q)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Venue < quotes[j].Venue })
	return quotes, nil
}
