package repository

import (
	"context"
	"sort"

	"botdeck/backend/internal/model"
	"botdeck/backend/pkg/redis"
)

// connectionRecord is the stored form; the public model hides the credential blob from JSON
type connectionRecord struct {
	model.ExchangeConnection
	Credentials string `json:"credentials"`
}

type ConnectionRepository struct {
	redis *redis.Client
}

func NewConnectionRepository(redisClient *redis.Client) *ConnectionRepository {
	return &ConnectionRepository{
		redis: redisClient,
	}
}

// Save creates or replaces a connection
func (r *ConnectionRepository) Save(ctx context.Context, conn *model.ExchangeConnection) error {
	rec := connectionRecord{
		ExchangeConnection: *conn,
		Credentials:        conn.EncryptedCredentials,
	}
	if err := r.redis.SetJSON(ctx, redis.ConnectionKey(conn.ID), rec, 0); err != nil {
		return err
	}
	return r.redis.SAdd(ctx, redis.ConnectionsKey(), conn.ID)
}

// GetByID retrieves a connection by ID
func (r *ConnectionRepository) GetByID(ctx context.Context, connectionID string) (*model.ExchangeConnection, error) {
	var rec connectionRecord
	if err := r.redis.GetJSON(ctx, redis.ConnectionKey(connectionID), &rec); err != nil {
		if redis.IsNil(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	conn := rec.ExchangeConnection
	conn.EncryptedCredentials = rec.Credentials
	return &conn, nil
}

// ListAll retrieves every connection ordered by creation time
func (r *ConnectionRepository) ListAll(ctx context.Context) ([]*model.ExchangeConnection, error) {
	ids, err := r.redis.SMembers(ctx, redis.ConnectionsKey())
	if err != nil {
		return nil, err
	}

	conns := make([]*model.ExchangeConnection, 0, len(ids))
	for _, id := range ids {
		conn, err := r.GetByID(ctx, id)
		if err == nil {
			conns = append(conns, conn)
		}
	}

	sort.Slice(conns, func(i, j int) bool {
		return conns[i].CreatedAt.Before(conns[j].CreatedAt)
	})
	return conns, nil
}
