package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/service/market"
	"botdeck/backend/pkg/crypto"
	"botdeck/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type tokenTable map[string]string

func (t tokenTable) VerifyToken(token string) (string, error) {
	if id, ok := t[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

type okProber struct{}

func (okProber) Probe(ctx context.Context, exchange string, creds model.Credentials) (*service.ProbeResult, error) {
	return &service.ProbeResult{Balance: 100}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
	Pagination *struct {
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
		Total  int64 `json:"total"`
	} `json:"pagination"`
}

type testServer struct {
	router *gin.Engine
	engine *service.Orchestrator
	source *market.StaticSource
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cipher, err := crypto.NewCipher(strings.Repeat("k", crypto.KeySize))
	if err != nil {
		t.Fatal(err)
	}
	source := market.NewStaticSource()
	engine := service.NewOrchestrator(service.Deps{
		Market: source,
		Prober: okProber{},
		Cipher: cipher,
		Bots:   repository.NewMemoryBotStore(),
		Conns:  repository.NewMemoryConnectionStore(),
		Trades: repository.NewMemoryTradeStore(),
	}, service.Options{TickInterval: time.Minute, MarketDataTimeout: time.Second, ProbeTimeout: time.Second, ProbeMaxAttempts: 1})
	t.Cleanup(engine.Scheduler.Wait)

	router := NewRouter(RouterConfig{
		Log:               logger.Nop(),
		Verifier:          tokenTable{"alice-token": "alice", "bob-token": "bob"},
		Engine:            engine,
		Market:            source,
		MarketTimeout:     time.Second,
		AllowedOrigins:    []string{"http://localhost:5173"},
		RequestsPerMinute: 1000,
	})
	return &testServer{router: router, engine: engine, source: source}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, env
}

func (s *testServer) connect(t *testing.T, token string) model.ExchangeConnection {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/exchanges", token, map[string]string{
		"name": "main", "exchange": "indodax", "kind": "cex", "api_key": "k-123456", "api_secret": "s-abcdef",
	})
	if code != http.StatusCreated {
		t.Fatalf("connect: status %d", code)
	}
	var conn model.ExchangeConnection
	json.Unmarshal(env.Data, &conn)
	return conn
}

func (s *testServer) createBot(t *testing.T, token, connID string) model.Bot {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/v1/bots", token, map[string]interface{}{
		"name": "dca", "strategy": "dca", "exchange_id": connID, "pair": "BTC_USDT", "investment": 1000,
	})
	if code != http.StatusCreated {
		t.Fatalf("create: status %d (%+v)", code, env.Error)
	}
	var bot model.Bot
	json.Unmarshal(env.Data, &bot)
	return bot
}

func TestRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	if code, env := s.do(t, http.MethodGet, "/api/v1/bots", "", nil); code != http.StatusUnauthorized || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected 401, got %d %+v", code, env.Error)
	}
	if code, env := s.do(t, http.MethodGet, "/api/v1/bots", "forged", nil); code != http.StatusUnauthorized || env.Error.Code != "TOKEN_INVALID" {
		t.Fatalf("expected invalid token, got %d %+v", code, env.Error)
	}
}

func TestBotLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.source.SetPrice("btc_usdt", 50, 0)

	bot := s.createBot(t, "alice-token", "missing")
	if bot.Pair != "btc_usdt" || bot.Status != model.BotStatusStopped {
		t.Fatalf("unexpected bot %+v", bot)
	}

	code, env := s.do(t, http.MethodPatch, "/api/v1/bots/"+bot.ID, "alice-token", map[string]string{"action": "start"})
	if code != http.StatusPreconditionFailed || env.Error.Code != "PRECONDITION_FAILED" {
		t.Fatalf("start without connection: %d %+v", code, env.Error)
	}

	conn := s.connect(t, "alice-token")
	code, _ = s.do(t, http.MethodPatch, "/api/v1/bots/"+bot.ID, "alice-token", map[string]interface{}{
		"action": "update", "bot": map[string]string{"exchange_id": conn.ID},
	})
	if code != http.StatusOK {
		t.Fatalf("update: %d", code)
	}

	code, env = s.do(t, http.MethodPatch, "/api/v1/bots/"+bot.ID, "alice-token", map[string]string{"action": "start"})
	if code != http.StatusOK {
		t.Fatalf("start: %d %+v", code, env.Error)
	}
	s.engine.Scheduler.Wait()

	code, env = s.do(t, http.MethodGet, "/api/v1/bots/"+bot.ID+"/trades?limit=10", "alice-token", nil)
	if code != http.StatusOK || env.Pagination == nil || env.Pagination.Total != 1 {
		t.Fatalf("trades: %d %+v", code, env.Pagination)
	}

	code, env = s.do(t, http.MethodGet, "/api/v1/bots/"+bot.ID+"/summary", "alice-token", nil)
	var summary model.BotSummary
	json.Unmarshal(env.Data, &summary)
	if code != http.StatusOK || summary.TotalTrades != 1 {
		t.Fatalf("summary: %d %+v", code, summary)
	}

	if code, _ := s.do(t, http.MethodDelete, "/api/v1/bots/"+bot.ID, "alice-token", nil); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	if code, env := s.do(t, http.MethodGet, "/api/v1/bots/"+bot.ID, "alice-token", nil); code != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("get after delete: %d %+v", code, env.Error)
	}
}

func TestBotsAreOwnerScoped(t *testing.T) {
	s := newTestServer(t)
	bot := s.createBot(t, "alice-token", "conn")

	if code, _ := s.do(t, http.MethodGet, "/api/v1/bots/"+bot.ID, "bob-token", nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's bot, got %d", code)
	}

	_, env := s.do(t, http.MethodGet, "/api/v1/bots", "bob-token", nil)
	var bots []model.Bot
	json.Unmarshal(env.Data, &bots)
	if len(bots) != 0 {
		t.Fatalf("bob should see no bots, got %d", len(bots))
	}

	conn := s.connect(t, "alice-token")
	code, env := s.do(t, http.MethodPost, "/api/v1/bots", "bob-token", map[string]interface{}{
		"name": "borrowed", "strategy": "dca", "exchange_id": conn.ID, "pair": "btc_usdt", "investment": 10,
	})
	if code != http.StatusForbidden || env.Error == nil || env.Error.Code != "FORBIDDEN" {
		t.Fatalf("bob must not trade on alice's exchange, got %d %+v", code, env.Error)
	}
}

func TestUpdateBotRejectsUnknownAction(t *testing.T) {
	s := newTestServer(t)
	bot := s.createBot(t, "alice-token", "conn")

	code, env := s.do(t, http.MethodPatch, "/api/v1/bots/"+bot.ID, "alice-token", map[string]string{"action": "explode"})
	if code != http.StatusBadRequest || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation failure, got %d %+v", code, env.Error)
	}
}

func TestCreateBotValidationError(t *testing.T) {
	s := newTestServer(t)
	code, env := s.do(t, http.MethodPost, "/api/v1/bots", "alice-token", map[string]interface{}{
		"name": "x", "strategy": "martingale", "exchange_id": "c", "pair": "btc_usdt", "investment": 10,
	})
	if code != http.StatusBadRequest || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation error, got %d %+v", code, env.Error)
	}
}

func TestConnectionEndpoints(t *testing.T) {
	s := newTestServer(t)
	conn := s.connect(t, "alice-token")
	if conn.Status != model.ConnectionStatusConnected {
		t.Fatalf("unexpected status %s", conn.Status)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/exchanges", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	s.router.ServeHTTP(rec, req)
	if strings.Contains(rec.Body.String(), "s-abcdef") || strings.Contains(rec.Body.String(), "credentials") {
		t.Fatalf("credentials leaked: %s", rec.Body.String())
	}

	if code, _ := s.do(t, http.MethodDelete, "/api/v1/exchanges/"+conn.ID, "bob-token", nil); code != http.StatusForbidden {
		t.Fatalf("bob must not disconnect alice's exchange, got %d", code)
	}
	code, env := s.do(t, http.MethodDelete, "/api/v1/exchanges/"+conn.ID, "alice-token", nil)
	var got model.ExchangeConnection
	json.Unmarshal(env.Data, &got)
	if code != http.StatusOK || got.Status != model.ConnectionStatusDisconnected {
		t.Fatalf("disconnect: %d %+v", code, got)
	}

	code, env = s.do(t, http.MethodPost, "/api/v1/exchanges/"+conn.ID+"/reconnect", "alice-token", nil)
	json.Unmarshal(env.Data, &got)
	if code != http.StatusOK || got.Status != model.ConnectionStatusConnected {
		t.Fatalf("reconnect: %d %+v", code, got)
	}

	if code, _ := s.do(t, http.MethodPost, "/api/v1/exchanges", "alice-token", map[string]string{"name": "x"}); code != http.StatusBadRequest {
		t.Fatalf("incomplete request should be rejected, got %d", code)
	}
}

func TestMarketEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.source.SetPrice("eth_usdt", 2000, 1.2)
	s.source.SetVenuePrice("eth_usdt", "alpha", 1999)

	code, env := s.do(t, http.MethodGet, "/api/v1/market/ETH_USDT", "alice-token", nil)
	var q market.Quote
	json.Unmarshal(env.Data, &q)
	if code != http.StatusOK || q.Price != 2000 {
		t.Fatalf("quote: %d %+v", code, q)
	}

	if code, _ := s.do(t, http.MethodGet, "/api/v1/market/doge_usdt", "alice-token", nil); code != http.StatusNotFound {
		t.Fatalf("unknown pair should be 404, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/api/v1/market/eth_usdt/venues", "alice-token", nil); code != http.StatusOK {
		t.Fatalf("venues: %d", code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}
