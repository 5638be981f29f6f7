package repository

import (
	"context"
	"sort"

	"botdeck/backend/internal/model"
	"botdeck/backend/pkg/redis"
)

type BotRepository struct {
	redis *redis.Client
}

func NewBotRepository(redisClient *redis.Client) *BotRepository {
	return &BotRepository{
		redis: redisClient,
	}
}

// Save creates or replaces a bot record and its indexes
func (r *BotRepository) Save(ctx context.Context, bot *model.Bot) error {
	if err := r.redis.SetJSON(ctx, redis.BotKey(bot.ID), bot, 0); err != nil {
		return err
	}

	pipe := r.redis.TxPipeline()
	pipe.SAdd(ctx, redis.BotsKey(), bot.ID)
	if bot.OwnerID != "" {
		pipe.SAdd(ctx, redis.UserBotsKey(bot.OwnerID), bot.ID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetByID retrieves a bot by ID
func (r *BotRepository) GetByID(ctx context.Context, botID string) (*model.Bot, error) {
	var bot model.Bot
	if err := r.redis.GetJSON(ctx, redis.BotKey(botID), &bot); err != nil {
		if redis.IsNil(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bot, nil
}

// Delete removes a bot record and its indexes
func (r *BotRepository) Delete(ctx context.Context, botID string) error {
	bot, err := r.GetByID(ctx, botID)
	if err != nil {
		return err
	}

	pipe := r.redis.TxPipeline()
	pipe.Del(ctx, redis.BotKey(botID))
	pipe.SRem(ctx, redis.BotsKey(), botID)
	if bot.OwnerID != "" {
		pipe.SRem(ctx, redis.UserBotsKey(bot.OwnerID), botID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// ListAll retrieves every bot ordered by creation time
func (r *BotRepository) ListAll(ctx context.Context) ([]*model.Bot, error) {
	return r.listFromSet(ctx, redis.BotsKey())
}

// ListByUser retrieves all bots for a user
func (r *BotRepository) ListByUser(ctx context.Context, userID string) ([]*model.Bot, error) {
	return r.listFromSet(ctx, redis.UserBotsKey(userID))
}

func (r *BotRepository) listFromSet(ctx context.Context, setKey string) ([]*model.Bot, error) {
	botIDs, err := r.redis.SMembers(ctx, setKey)
	if err != nil {
		return nil, err
	}

	bots := make([]*model.Bot, 0, len(botIDs))
	for _, id := range botIDs {
		bot, err := r.GetByID(ctx, id)
		if err == nil {
			bots = append(bots, bot)
		}
	}

	sort.Slice(bots, func(i, j int) bool {
		return bots[i].CreatedAt.Before(bots[j].CreatedAt)
	})
	return bots, nil
}
