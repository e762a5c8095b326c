package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StreamPublisher mirrors bus events onto a Redis stream so external
// consumers can follow platform activity.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

// NewStreamPublisher returns a publisher writing to stream, defaulting to
// StreamName when stream is empty.
func NewStreamPublisher(client *redis.Client, stream string) (*StreamPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if stream == "" {
		stream = StreamName
	}
	return &StreamPublisher{client: client, stream: stream}, nil
}

// Publish appends event to the stream as one JSON-encoded entry.
func (p *StreamPublisher) Publish(ctx context.Context, event Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event": eventJSON,
		},
	}
	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// HandleEvent adapts Publish to the bus Handler signature. Subscribe it with
// the "*" pattern to mirror every event.
func (p *StreamPublisher) HandleEvent(ctx context.Context, event Event) error {
	return p.Publish(ctx, event)
}
