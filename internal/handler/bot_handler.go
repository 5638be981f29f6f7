package handler

import (
	"strconv"

	"botdeck/backend/internal/model"
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	defaultTradesLimit = 50
	maxTradesLimit     = 500
)

type BotHandler struct {
	bots *service.BotRegistry
}

func NewBotHandler(bots *service.BotRegistry) *BotHandler {
	return &BotHandler{bots: bots}
}

// CreateBot handles POST /api/v1/bots
func (h *BotHandler) CreateBot(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req model.BotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	bot, err := h.bots.Create(c.Request.Context(), userID, &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendCreated(c, bot, "Bot created successfully")
}

// ListBots handles GET /api/v1/bots
func (h *BotHandler) ListBots(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	util.SendSuccess(c, h.bots.ListByOwner(c.Request.Context(), userID))
}

// GetBot handles GET /api/v1/bots/:id
func (h *BotHandler) GetBot(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}
	util.SendSuccess(c, bot)
}

// UpdateBot handles PATCH /api/v1/bots/:id
func (h *BotHandler) UpdateBot(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	var req model.BotUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var (
		updated *model.Bot
		err     error
	)
	switch req.Action {
	case model.BotActionStart:
		updated, err = h.bots.Start(ctx, bot.ID)
	case model.BotActionStop:
		updated, err = h.bots.Stop(ctx, bot.ID)
	case model.BotActionPause:
		updated, err = h.bots.Pause(ctx, bot.ID)
	case model.BotActionResume:
		updated, err = h.bots.Resume(ctx, bot.ID)
	case model.BotActionUpdate:
		if req.Bot == nil {
			err = util.ErrValidation("bot is required for the update action")
			break
		}
		updated, err = h.bots.Update(ctx, bot.ID, req.Bot)
	default:
		err = util.ErrBadRequest("Unsupported action")
	}

	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, updated)
}

// DeleteBot handles DELETE /api/v1/bots/:id
func (h *BotHandler) DeleteBot(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	if err := h.bots.Delete(c.Request.Context(), bot.ID); err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccessWithMessage(c, nil, "Bot deleted successfully")
}

// GetBotTrades handles GET /api/v1/bots/:id/trades?limit=&offset=
func (h *BotHandler) GetBotTrades(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultTradesLimit)))
	if err != nil || limit <= 0 {
		util.SendError(c, util.ErrBadRequest("Invalid limit"))
		return
	}
	if limit > maxTradesLimit {
		limit = maxTradesLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		util.SendError(c, util.ErrBadRequest("Invalid offset"))
		return
	}

	trades, err := h.bots.Trades(c.Request.Context(), bot.ID)
	if err != nil {
		util.SendError(c, err)
		return
	}

	total := len(trades)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	util.SendPaginated(c, trades[start:end], util.Pagination{
		Limit:  limit,
		Offset: offset,
		Total:  int64(total),
	})
}

// GetBotSummary handles GET /api/v1/bots/:id/summary
func (h *BotHandler) GetBotSummary(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	summary, err := h.bots.Summary(c.Request.Context(), bot.ID)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, summary)
}

// ownedBot loads the bot named in the path and checks it belongs to the caller
func (h *BotHandler) ownedBot(c *gin.Context) (*model.Bot, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}

	bot, err := h.bots.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.SendError(c, err)
		return nil, false
	}

	if bot.OwnerID != userID {
		util.SendError(c, util.ErrForbidden("Access denied"))
		return nil, false
	}
	return bot, true
}

// currentUser returns the authenticated user id, writing a 401 when absent
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		util.SendError(c, util.ErrUnauthorized("User not authenticated"))
		return "", false
	}
	return userID, true
}
