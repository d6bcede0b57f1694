package broker

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis uses PUBLISH and SUBSCRIBE. Messages published while an instance is
// not subscribed are lost for that instance.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb}
}

func (r *Redis) Publish(ctx context.Context, channel string, data []byte) error {
	return r.rdb.Publish(ctx, channel, data).Err()
}

func (r *Redis) Subscribe(ctx context.Context, channel string, handler Handler) error {
	ps := r.rdb.Subscribe(ctx, channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}

	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis subscription closed")
			}
			// There is no redelivery in redis pub/sub, the error is dropped.
			_ = handler(ctx, []byte(msg.Payload))
		}
	}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
