package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"botdeck/backend/internal/service/market"
	"botdeck/backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MarketHandler struct {
	source  market.Source
	timeout time.Duration
}

func NewMarketHandler(source market.Source, timeout time.Duration) *MarketHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MarketHandler{source: source, timeout: timeout}
}

// GetQuote returns the current quote for a pair
// GET /api/v1/market/:pair
func (h *MarketHandler) GetQuote(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	q, err := h.source.Quote(ctx, normalizePair(c.Param("pair")))
	if err != nil {
		h.sendMarketError(c, err)
		return
	}

	util.SendSuccess(c, q)
}

// GetVenueQuotes returns the per-venue quotes used by arbitrage bots
// GET /api/v1/market/:pair/venues
func (h *MarketHandler) GetVenueQuotes(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	quotes, err := h.source.Quotes(ctx, normalizePair(c.Param("pair")))
	if err != nil {
		h.sendMarketError(c, err)
		return
	}

	util.SendSuccess(c, gin.H{
		"quotes": quotes,
		"count":  len(quotes),
	})
}

func (h *MarketHandler) sendMarketError(c *gin.Context, err error) {
	if errors.Is(err, market.ErrNoData) {
		util.SendCustomError(c, http.StatusNotFound, util.ErrCodeNotFound, "Pair not found")
		return
	}
	util.SendError(c, util.ErrConnection("Market data unavailable", err))
}

func normalizePair(pair string) string {
	return strings.ToLower(strings.TrimSpace(pair))
}
