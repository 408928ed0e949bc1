package oauth

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topic carries Completion messages.
const Topic = "oauth.completions"

// Bus delivers completions from the callback server to the editor.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            16,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logger),
	)

	return &Bus{pubSub: pubSub, logger: logger.With("module", "oauth_bus")}
}

func (b *Bus) Publish(completion Completion) error {
	payload, err := json.Marshal(completion)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(completion.Type))

	return b.pubSub.Publish(Topic, msg)
}

// Subscribe streams completions until ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Completion, error) {
	messages, err := b.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, err
	}

	completions := make(chan Completion)

	go func() {
		defer close(completions)

		for msg := range messages {
			var completion Completion
			if err := json.Unmarshal(msg.Payload, &completion); err != nil {
				b.logger.WarnContext(ctx, "Dropping malformed completion", "error", err)
				msg.Ack()

				continue
			}

			select {
			case completions <- completion:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()

				return
			}
		}
	}()

	return completions, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
