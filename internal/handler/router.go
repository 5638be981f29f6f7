package handler

import (
	"net/http"
	"time"

	"botdeck/backend/internal/middleware"
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/service/market"
	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries everything the HTTP surface is built from
type RouterConfig struct {
	Log      *logger.Logger
	Verifier middleware.TokenVerifier
	// Redis is optional; without it rate limiting is per process and /health skips the ping
	Redis *redis.Client

	Engine        *service.Orchestrator
	Hub           *service.WSHub
	Market        market.Source
	MarketTimeout time.Duration

	AllowedOrigins    []string
	RequestsPerMinute int
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(cfg.Log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(cfg.Log, "/health", "/metrics"))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	var health *HealthHandler
	if cfg.Redis != nil {
		health = NewHealthHandler(cfg.Redis)
	} else {
		health = NewHealthHandler(nil)
	}
	router.GET("/health", health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	botHandler := NewBotHandler(cfg.Engine.Bots)
	connHandler := NewConnectionHandler(cfg.Engine.Connections)
	marketHandler := NewMarketHandler(cfg.Market, cfg.MarketTimeout)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "pong",
				"time":    time.Now().Unix(),
			})
		})

		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(cfg.Verifier))
		authed.Use(middleware.RateLimit(cfg.Redis, cfg.RequestsPerMinute))

		bots := authed.Group("/bots")
		{
			bots.POST("", botHandler.CreateBot)
			bots.GET("", botHandler.ListBots)
			bots.GET("/:id", botHandler.GetBot)
			bots.PATCH("/:id", botHandler.UpdateBot)
			bots.DELETE("/:id", botHandler.DeleteBot)
			bots.GET("/:id/trades", botHandler.GetBotTrades)
			bots.GET("/:id/summary", botHandler.GetBotSummary)
		}

		exchanges := authed.Group("/exchanges")
		{
			exchanges.POST("", connHandler.Connect)
			exchanges.GET("", connHandler.List)
			exchanges.DELETE("/:id", connHandler.Disconnect)
			exchanges.POST("/:id/reconnect", connHandler.Reconnect)
		}

		marketGroup := authed.Group("/market")
		{
			marketGroup.GET("/:pair", marketHandler.GetQuote)
			marketGroup.GET("/:pair/venues", marketHandler.GetVenueQuotes)
		}

		if cfg.Hub != nil {
			authed.GET("/ws", cfg.Hub.ServeWS)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
