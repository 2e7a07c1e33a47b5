package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/postboard/utils"
)

// RedisRelay carries events between instances over a Redis pub/sub channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
}

// NewRedisRelay creates a relay on channel.
func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	return &RedisRelay{client: client, channel: channel}
}

// Publish sends evt to every subscribed instance, this one included.
func (r *RedisRelay) Publish(ctx context.Context, evt Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, b).Err()
}

// Subscribe delivers events from the channel until ctx is done.
func (r *RedisRelay) Subscribe(ctx context.Context, ready func(), deliver func(Event)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ready()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("relay channel closed")
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				utils.Sugar.Warnf("realtime relay dropped malformed message: %v", err)
				continue
			}
			deliver(evt)
		}
	}
}
