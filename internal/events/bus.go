package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// TopicRunEvents is the bus topic carrying all run lifecycle events.
const TopicRunEvents = "drover.run.events"

// Bus relays lifecycle events to subscribers over an in-process pub/sub
// channel. Publishing never blocks on slow subscribers and the bus has no
// role in run correctness.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewBus creates an in-process event bus. With debug set, the underlying
// pub/sub logs its activity to stderr.
func NewBus(debug bool) *Bus {
	logger := watermill.NewStdLogger(debug, false)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		Persistent:          false,
	}, logger)

	return &Bus{
		pubsub: pubsub,
		logger: logger,
	}
}

// Publish emits an event to all current subscribers.
func (b *Bus) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicRunEvents, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of decoded events. The channel closes when ctx
// ends or the bus is closed. Events that fail to decode are dropped with a
// log line rather than stalling the stream.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicRunEvents)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", TopicRunEvents, err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.Error("decode event", err, watermill.LogFields{"message_uuid": msg.UUID})
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
