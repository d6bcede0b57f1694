// Package broker carries notification events between gateway instances so
// that every instance can deliver them to its own subscribers.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/ichigozero/taskdesk/notifysvc"
	"github.com/sony/gobreaker"
)

// Handler processes one message. Returning an error asks the backend to
// redeliver when it can.
type Handler func(ctx context.Context, data []byte) error

// Backend is a publish/subscribe transport. Every subscriber of a channel
// receives every message published to it.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte) error
	// Subscribe blocks, feeding messages to handler until ctx is done or
	// the subscription fails.
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

type publisher struct {
	publish endpoint.Endpoint
}

// NewPublisher returns a notifysvc.Publisher that sends events to channel.
// Calls fail fast while the backend keeps failing.
func NewPublisher(b Backend, channel string) notifysvc.Publisher {
	var publish endpoint.Endpoint
	{
		publish = makePublishEndpoint(b, channel)
		publish = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "broker-publish",
			Timeout: 30 * time.Second,
		}))(publish)
	}
	return publisher{publish}
}

func (p publisher) Publish(ctx context.Context, e notifysvc.Event) error {
	_, err := p.publish(ctx, e)
	return err
}

func makePublishEndpoint(b Backend, channel string) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		e := request.(notifysvc.Event)
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		return nil, b.Publish(ctx, channel, data)
	}
}

// Relay subscribes to channel and republishes every event to dst. It returns
// when ctx is done or the subscription fails.
func Relay(ctx context.Context, b Backend, channel string, dst notifysvc.Publisher, logger log.Logger) error {
	return b.Subscribe(ctx, channel, func(ctx context.Context, data []byte) error {
		var e notifysvc.Event
		if err := json.Unmarshal(data, &e); err != nil || e.Name == "" {
			// Redelivering a malformed message would not help.
			level.Warn(logger).Log("channel", channel, "err", fmt.Errorf("%w: %v", notifysvc.ErrInvalidEvent, err))
			return nil
		}
		return dst.Publish(ctx, e)
	})
}
