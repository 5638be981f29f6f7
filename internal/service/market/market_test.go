package market

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"botdeck/backend/pkg/gateway"
	"botdeck/backend/pkg/redis"

	"github.com/alicebob/miniredis/v2"
)

type countingSource struct {
	calls atomic.Int32
	price float64
	err   error
}

func (s *countingSource) Quote(ctx context.Context, symbol string) (Quote, error) {
	s.calls.Add(1)
	if s.err != nil {
		return Quote{}, s.err
	}
	return Quote{Symbol: symbol, Price: s.price}, nil
}

func (s *countingSource) Quotes(ctx context.Context, symbol string) ([]Quote, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []Quote{{Symbol: symbol, Venue: "x", Price: s.price}}, nil
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource()
	ctx := context.Background()

	if _, err := src.Quote(ctx, "btc_usdt"); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	src.SetPrice("btc_usdt", 50, 1.5)
	q, err := src.Quote(ctx, "btc_usdt")
	if err != nil || q.Price != 50 || q.Change24h != 1.5 {
		t.Fatalf("unexpected quote %+v (%v)", q, err)
	}

	src.SetVenuePrice("btc_usdt", "b", 101)
	src.SetVenuePrice("btc_usdt", "a", 100)
	quotes, _ := src.Quotes(ctx, "btc_usdt")
	if len(quotes) != 2 || quotes[0].Venue != "a" {
		t.Fatalf("unexpected venue quotes %+v", quotes)
	}
}

func TestStaticSourceDelayHonoursContext(t *testing.T) {
	src := NewStaticSource()
	src.SetPrice("btc_usdt", 50, 0)
	src.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := src.Quote(ctx, "btc_usdt"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCachedSourceServesFromRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewFromAddr(mr.Addr())
	defer rc.Close()

	next := &countingSource{price: 42}
	src := NewCachedSource(next, rc, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q, err := src.Quote(ctx, "eth_usdt")
		if err != nil || q.Price != 42 {
			t.Fatalf("unexpected quote %+v (%v)", q, err)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Fatalf("expected one upstream call, got %d", n)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := src.Quote(ctx, "eth_usdt"); err != nil {
		t.Fatalf("Quote after expiry: %v", err)
	}
	if n := next.calls.Load(); n != 2 {
		t.Fatalf("expected refetch after ttl, got %d calls", n)
	}
}

func TestLiveBypassesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewFromAddr(mr.Addr())
	defer rc.Close()

	next := &countingSource{price: 42}
	cached := NewCachedSource(next, rc, time.Minute)
	ctx := context.Background()

	live := Live(cached)
	if live != Source(next) {
		t.Fatalf("Live should unwrap the cache, got %T", live)
	}
	if _, err := cached.Quote(ctx, "eth_usdt"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := live.Quote(ctx, "eth_usdt"); err != nil {
			t.Fatal(err)
		}
	}
	if n := next.calls.Load(); n != 3 {
		t.Fatalf("every live read should reach upstream, got %d calls", n)
	}

	static := NewStaticSource()
	if Live(static) != Source(static) {
		t.Fatal("an uncached source is already live")
	}
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewFromAddr(mr.Addr())
	defer rc.Close()

	next := &countingSource{err: errors.New("down")}
	src := NewCachedSource(next, rc, time.Minute)

	if _, err := src.Quote(context.Background(), "eth_usdt"); err == nil {
		t.Fatal("expected upstream error")
	}
	if mr.Exists(redis.QuoteCacheKey("eth_usdt")) {
		t.Fatal("failed lookups must not be cached")
	}
}

func TestFanoutSourceSkipsFailingVenues(t *testing.T) {
	src := NewFanoutSource("a", map[string]Source{
		"a": &countingSource{price: 100},
		"b": &countingSource{price: 101},
		"c": &countingSource{err: errors.New("down")},
	})

	quotes, err := src.Quotes(context.Background(), "btc_usdt")
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if len(quotes) != 2 || quotes[0].Venue != "a" || quotes[1].Venue != "b" {
		t.Fatalf("unexpected quotes %+v", quotes)
	}

	q, err := src.Quote(context.Background(), "btc_usdt")
	if err != nil || q.Price != 100 || q.Venue != "a" {
		t.Fatalf("unexpected primary quote %+v (%v)", q, err)
	}
}

type fakeTickerClient struct{}

func (fakeTickerClient) GetTicker(ctx context.Context, pair string) (*gateway.Ticker, error) {
	return &gateway.Ticker{Pair: pair, Last: 50, Change24h: -6, Venue: "main"}, nil
}

func (fakeTickerClient) GetQuotes(ctx context.Context, pair string) ([]gateway.VenueQuote, error) {
	return []gateway.VenueQuote{{Venue: "a", Price: 1}, {Venue: "b", Price: 2}}, nil
}

func TestGatewaySourceMapsTicker(t *testing.T) {
	src := NewGatewaySource(fakeTickerClient{})
	q, err := src.Quote(context.Background(), "btc_usdt")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Price != 50 || q.Change24h != -6 || q.Symbol != "btc_usdt" {
		t.Fatalf("unexpected quote %+v", q)
	}
	quotes, err := src.Quotes(context.Background(), "btc_usdt")
	if err != nil || len(quotes) != 2 {
		t.Fatalf("unexpected quotes %+v (%v)", quotes, err)
	}
}
