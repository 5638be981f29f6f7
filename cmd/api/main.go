package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botdeck/backend/internal/config"
	"botdeck/backend/internal/handler"
	"botdeck/backend/internal/repository"
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/service/market"
	"botdeck/backend/pkg/crypto"
	"botdeck/backend/pkg/gateway"
	"botdeck/backend/pkg/jwt"
	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.GetLogger()

	log.Info("Starting botdeck backend...")
	log.Infof("Environment: %s, storage: %s", cfg.Server.Env, cfg.Redis.Storage)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is only dialed when it backs storage
	var redisClient *redis.Client
	var stores storeSet
	if cfg.Redis.Storage == "redis" {
		redisClient, err = redis.New(redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", err)
		}
		defer redisClient.Close()
		redis.SetKeyPrefix(cfg.Redis.Prefix)
		stores = storeSet{
			bots:   repository.NewBotRepository(redisClient),
			conns:  repository.NewConnectionRepository(redisClient),
			trades: repository.NewTradeRepository(redisClient),
		}
		log.Info("✓ Redis connected")
	} else {
		stores = storeSet{
			bots:   repository.NewMemoryBotStore(),
			conns:  repository.NewMemoryConnectionStore(),
			trades: repository.NewMemoryTradeStore(),
		}
		log.Warn("In-memory storage: state is lost on restart")
	}

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	cipher, err := crypto.NewCipher(cfg.Encryption.Key)
	if err != nil {
		log.Fatal("Invalid encryption key", err)
	}
	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire)

	gatewayClient := gateway.NewClient(cfg.Gateway.APIURL, gateway.Options{
		Timeout:   cfg.Gateway.Timeout,
		RateLimit: cfg.Gateway.RateLimitRPS,
	})
	source := marketSource(cfg, gatewayClient, redisClient)

	hub := service.NewWSHub(redisClient, cfg.CORS.AllowedOrigins)
	var notifier *service.NotificationService
	if redisClient != nil {
		notifier = service.NewNotificationService(redisClient)
		go hub.StartPubSubListener(ctx)
	} else {
		notifier = service.NewNotificationService(hub)
	}

	engine := service.NewOrchestrator(service.Deps{
		Market:   source,
		Prober:   service.NewGatewayProber(gatewayClient),
		Orders:   gatewayClient,
		Cipher:   cipher,
		Bots:     stores.bots,
		Conns:    stores.conns,
		Trades:   stores.trades,
		Notifier: notifier,
	}, service.Options{
		TickInterval:           cfg.Engine.TickInterval,
		MarketDataTimeout:      cfg.Engine.MarketDataTimeout,
		ProbeTimeout:           cfg.Engine.ProbeTimeout,
		ProbeMaxAttempts:       cfg.Engine.ProbeMaxAttempts,
		ConnectionSyncInterval: cfg.Engine.ConnectionSyncInterval,
		SyncConcurrency:        cfg.Engine.SyncConcurrency,
	})

	if err := engine.Restore(ctx); err != nil {
		log.Fatal("Failed to restore engine state", err)
	}
	engine.Start(ctx)
	log.Infof("✓ Engine started (tick %s)", cfg.Engine.TickInterval)

	router := handler.NewRouter(handler.RouterConfig{
		Log:               log,
		Verifier:          jwtManager,
		Redis:             redisClient,
		Engine:            engine,
		Hub:               hub,
		Market:            source,
		MarketTimeout:     cfg.Engine.MarketDataTimeout,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err)
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Error("Engine did not stop in time", err)
	}

	log.Info("Server exited")
}

type storeSet struct {
	bots   repository.BotStore
	conns  repository.ConnectionStore
	trades repository.TradeStore
}

// marketSource builds the price source: the gateway, fanned out over extra
// venues when configured, and cached in Redis when Redis is available.
func marketSource(cfg *config.Config, client *gateway.Client, redisClient *redis.Client) market.Source {
	var source market.Source = market.NewGatewaySource(client)

	if len(cfg.Gateway.Venues) > 0 {
		venues := map[string]market.Source{"gateway": source}
		for name, url := range cfg.Gateway.Venues {
			venueClient := gateway.NewClient(url, gateway.Options{
				Timeout:   cfg.Gateway.Timeout,
				RateLimit: cfg.Gateway.RateLimitRPS,
			})
			venues[name] = market.NewGatewaySource(venueClient)
		}
		source = market.NewFanoutSource("gateway", venues)
	}

	if redisClient != nil && cfg.Engine.MarketCacheTTL > 0 {
		source = market.NewCachedSource(source, redisClient, cfg.Engine.MarketCacheTTL)
	}
	return source
}
