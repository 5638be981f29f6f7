package service

import (
	"context"

	"botdeck/backend/internal/model"
	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"
)

// Notifier pushes bot, trade and connection events to the owning user
type Notifier interface {
	NotifyBotUpdate(ctx context.Context, userID string, payload model.WSBotUpdatePayload)
	NotifyTradeExecuted(ctx context.Context, userID string, trade *model.Trade)
	NotifyConnectionUpdate(ctx context.Context, userID string, payload model.WSConnectionUpdatePayload)
}

// Publisher delivers an encoded message on a channel. *redis.Client and *WSHub both satisfy it.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, value interface{}) error
}

// NotificationService publishes events for WebSocket delivery
type NotificationService struct {
	pub Publisher
	log *logger.Logger
}

func NewNotificationService(pub Publisher) *NotificationService {
	return &NotificationService{
		pub: pub,
		log: logger.GetLogger().WithComponent("notify"),
	}
}

// NotifyUser sends a message to a specific user via WebSocket
func (s *NotificationService) NotifyUser(ctx context.Context, userID string, msgType model.WSMessageType, payload interface{}) {
	if userID == "" {
		return
	}
	msg := model.WSMessage{
		Type:    msgType,
		Payload: payload,
	}

	channel := redis.UserChannel(userID)
	if err := s.pub.PublishJSON(ctx, channel, msg); err != nil {
		s.log.Errorf("Failed to publish notification to channel %s: %v", channel, err)
	}
}

// Broadcast sends a message to all connected users
func (s *NotificationService) Broadcast(ctx context.Context, msgType model.WSMessageType, payload interface{}) {
	msg := model.WSMessage{
		Type:    msgType,
		Payload: payload,
	}

	channel := redis.BroadcastChannel()
	if err := s.pub.PublishJSON(ctx, channel, msg); err != nil {
		s.log.Errorf("Failed to publish broadcast notification to channel %s: %v", channel, err)
	}
}

// NotifyBotUpdate sends a bot status update notification
func (s *NotificationService) NotifyBotUpdate(ctx context.Context, userID string, payload model.WSBotUpdatePayload) {
	s.NotifyUser(ctx, userID, model.MessageTypeBotUpdate, payload)
}

// NotifyTradeExecuted sends a freshly recorded trade
func (s *NotificationService) NotifyTradeExecuted(ctx context.Context, userID string, trade *model.Trade) {
	s.NotifyUser(ctx, userID, model.MessageTypeTradeExecuted, trade)
}

// NotifyConnectionUpdate sends a connection health change
func (s *NotificationService) NotifyConnectionUpdate(ctx context.Context, userID string, payload model.WSConnectionUpdatePayload) {
	s.NotifyUser(ctx, userID, model.MessageTypeConnectionUpdate, payload)
}

// NopNotifier drops every event
type NopNotifier struct{}

func (NopNotifier) NotifyBotUpdate(context.Context, string, model.WSBotUpdatePayload)               {}
func (NopNotifier) NotifyTradeExecuted(context.Context, string, *model.Trade)                       {}
func (NopNotifier) NotifyConnectionUpdate(context.Context, string, model.WSConnectionUpdatePayload) {}
