package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "chatroom:"
	publishTimeout = 5 * time.Second
)

// RedisBridge relays room frames across instances over Redis pub/sub. It
// implements both Publisher and Subscriber.
type RedisBridge struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBridge creates a Redis pub/sub bridge for chat rooms.
func NewRedisBridge(client *redis.Client, logger *zap.Logger) *RedisBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBridge{client: client, logger: logger}
}

// PublishRoomEvent publishes a relay envelope to the room's channel.
func (b *RedisBridge) PublishRoomEvent(broadcastID string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, channelPrefix+broadcastID, payload).Err()
}

// SubscribeRoom subscribes to a room's channel and calls handler for each
// message. The returned cancel stops the subscription.
func (b *RedisBridge) SubscribeRoom(broadcastID string, handler func(payload []byte)) (cancel func(), err error) {
	channel := channelPrefix + broadcastID
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()
	return func() { cancelCtx() }, nil
}
