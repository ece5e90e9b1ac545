package live

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type changeMessage struct {
	Origin string   `json:"origin"`
	Tables []string `json:"tables"`
}

// RedisBridge relays broker changes between processes sharing a database.
type RedisBridge struct {
	client  *redis.Client
	broker  *Broker
	channel string
	origin  string
	logger  *zap.Logger
}

// NewRedisBridge constructs a bridge. Call Start to begin relaying.
func NewRedisBridge(client *redis.Client, broker *Broker, channel string, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{
		client:  client,
		broker:  broker,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Origin identifies this process on the channel.
func (b *RedisBridge) Origin() string {
	return b.origin
}

// Start forwards local publishes to Redis and remote ones to the local broker until ctx ends.
func (b *RedisBridge) Start(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	b.broker.OnPublish(func(tables []string) {
		payload, err := encodeChange(b.origin, tables)
		if err != nil {
			b.logger.Warn("encode change", zap.Error(err))
			return
		}
		if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Warn("publish change", zap.String("channel", b.channel), zap.Error(err))
		}
	})

	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				b.handle(msg.Payload)
			}
		}
	}()

	b.logger.Info("live bridge started", zap.String("channel", b.channel), zap.String("origin", b.origin))
	return nil
}

func (b *RedisBridge) handle(payload string) {
	msg, err := decodeChange(payload)
	if err != nil {
		b.logger.Warn("decode change", zap.Error(err))
		return
	}
	if msg.Origin == b.origin {
		return
	}
	b.broker.deliver(msg.Tables)
}

func encodeChange(origin string, tables []string) (string, error) {
	raw, err := json.Marshal(changeMessage{Origin: origin, Tables: tables})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeChange(payload string) (changeMessage, error) {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, err
	}
	return msg, nil
}
