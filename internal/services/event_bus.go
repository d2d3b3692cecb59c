package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teamonboard/flowline-backend/internal/pkg/envutil"
	"github.com/teamonboard/flowline-backend/internal/pkg/logger"
)

// EventMessage is the wire shape pushed to delivery consumers (web socket
// gateways, mailers) over the redis channel.
type EventMessage struct {
	UserID uuid.UUID `json:"user_id"`
	Type   string    `json:"type"`
	Title  string    `json:"title"`
	Body   string    `json:"body,omitempty"`
}

type EventBus interface {
	Publish(ctx context.Context, msg EventMessage) error
	// StartForwarder subscribes and feeds incoming messages to onMsg until the
	// context is cancelled.
	StartForwarder(ctx context.Context, onMsg func(m EventMessage)) error
	Close() error
}

type redisEventBus struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
}

func NewRedisEventBus(log *logger.Logger) (EventBus, error) {
	addr := strings.TrimSpace(envutil.Str("REDIS_ADDR", ""))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	channel := envutil.Str("REDIS_CHANNEL", "notifications")

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisEventBus{
		log:     log.With("service", "RedisEventBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisEventBus) Publish(ctx context.Context, msg EventMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisEventBus) StartForwarder(ctx context.Context, onMsg func(m EventMessage)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var msg EventMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("bad event payload", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *redisEventBus) Close() error {
	return b.rdb.Close()
}
