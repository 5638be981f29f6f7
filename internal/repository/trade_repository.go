package repository

import (
	"context"
	"encoding/json"

	"botdeck/backend/internal/model"
	"botdeck/backend/pkg/redis"
)

type TradeRepository struct {
	redis *redis.Client
}

func NewTradeRepository(redisClient *redis.Client) *TradeRepository {
	return &TradeRepository{
		redis: redisClient,
	}
}

// Append adds a trade to the end of its bot's history
func (r *TradeRepository) Append(ctx context.Context, trade *model.Trade) error {
	return r.redis.RPushJSON(ctx, redis.BotTradesKey(trade.BotID), trade)
}

// ListByBot returns a bot's trades in submission order
func (r *TradeRepository) ListByBot(ctx context.Context, botID string) ([]*model.Trade, error) {
	items, err := r.redis.LRange(ctx, redis.BotTradesKey(botID), 0, -1)
	if err != nil {
		return nil, err
	}

	trades := make([]*model.Trade, 0, len(items))
	for _, raw := range items {
		var t model.Trade
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

// DeleteByBot removes a deleted bot's history
func (r *TradeRepository) DeleteByBot(ctx context.Context, botID string) error {
	return r.redis.Del(ctx, redis.BotTradesKey(botID))
}
