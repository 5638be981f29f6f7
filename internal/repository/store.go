// Package repository provides persistence for bots, connections and trades.
package repository

import (
	"context"
	"errors"

	"botdeck/backend/internal/model"
)

// ErrNotFound is returned when a record does not exist in the store
var ErrNotFound = errors.New("record not found")

// BotStore persists bot records
type BotStore interface {
	Save(ctx context.Context, bot *model.Bot) error
	GetByID(ctx context.Context, botID string) (*model.Bot, error)
	Delete(ctx context.Context, botID string) error
	ListAll(ctx context.Context) ([]*model.Bot, error)
}

// ConnectionStore persists exchange connections, credentials included
type ConnectionStore interface {
	Save(ctx context.Context, conn *model.ExchangeConnection) error
	GetByID(ctx context.Context, connectionID string) (*model.ExchangeConnection, error)
	ListAll(ctx context.Context) ([]*model.ExchangeConnection, error)
}

// TradeStore persists the append-only trade history of each bot
type TradeStore interface {
	Append(ctx context.Context, trade *model.Trade) error
	ListByBot(ctx context.Context, botID string) ([]*model.Trade, error)
	DeleteByBot(ctx context.Context, botID string) error
}
