package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
	"github.com/redis/go-redis/v9"
)

// DefaultEventChannel is the pub/sub channel for session events.
const DefaultEventChannel = "pds:auth-events"

var _ ports.EventBus = (*EventBus)(nil)

// EventBus fans session events out to every instance via Redis pub/sub.
type EventBus struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// EventBusOptions configures an EventBus.
type EventBusOptions struct {
	Client  redis.UniversalClient
	Channel string // defaults to DefaultEventChannel
	Logger  *slog.Logger
}

// NewEventBus creates a Redis pub/sub event bus.
func NewEventBus(opts EventBusOptions) *EventBus {
	channel := opts.Channel
	if channel == "" {
		channel = DefaultEventChannel
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{client: opts.Client, channel: channel, logger: logger.With("component", "auth_event_bus")}
}

func (b *EventBus) Publish(ctx context.Context, ev domainauth.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe blocks delivering events to fn until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, fn func(domainauth.Event)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			b.logger.Debug("close pubsub", "error", err)
		}
	}()

	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var ev domainauth.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("discarding malformed auth event", "error", err)
				continue
			}
			fn(ev)
		}
	}
}
