package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"botdeck/backend/internal/model"
	"botdeck/backend/pkg/redis"

	"github.com/alicebob/miniredis/v2"
)

func TestNotificationServicePublishesToUserChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromAddr(mr.Addr())
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	sub := client.Subscribe(ctx, redis.UserChannel("user-1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	svc := NewNotificationService(client)
	svc.NotifyConnectionUpdate(ctx, "user-1", model.WSConnectionUpdatePayload{
		ConnectionID: "conn-1",
		Status:       model.ConnectionStatusError,
	})

	select {
	case msg := <-sub.Channel():
		var got struct {
			Type    model.WSMessageType             `json:"type"`
			Payload model.WSConnectionUpdatePayload `json:"payload"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != model.MessageTypeConnectionUpdate || got.Payload.ConnectionID != "conn-1" {
			t.Fatalf("unexpected message %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no message published")
	}
}
