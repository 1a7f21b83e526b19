package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jobnest/apiserver/config"
	"github.com/jobnest/apiserver/types"
)

const attrEventType = "event_type"

// NewFromConfig connects the backend selected by cfg.Backend. It returns
// nil without error when no backend is configured.
func NewFromConfig(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.BackendRabbitMQ:
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(backend), nil
	case config.BackendPubSub:
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// EventPublisher publishes job board events as JSON on a single channel.
type EventPublisher struct {
	mq      *MQ
	channel string
}

// NewEventPublisher constructs an EventPublisher writing to channel.
func NewEventPublisher(m *MQ, channel string) *EventPublisher {
	return &EventPublisher{mq: m, channel: channel}
}

// PublishEvent encodes event and publishes it with its type as an attribute.
func (p *EventPublisher) PublishEvent(ctx context.Context, event types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = p.mq.Publish(ctx, p.channel, data, map[string]string{
		attrEventType: string(event.Type),
	})
	return err
}

// EventHandler processes a decoded job board event.
type EventHandler func(ctx context.Context, event types.Event) error

// SubscribeEvents consumes job board events from channel until ctx is done.
// Messages that do not decode are acknowledged and dropped.
func (m *MQ) SubscribeEvents(ctx context.Context, channel string, handler EventHandler) error {
	return m.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		var event types.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		if event.Type == "" {
			event.Type = types.EventType(msg.Attributes[attrEventType])
		}
		return handler(ctx, event)
	})
}
