package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamsEventBus implements EventBus using Redis Streams
type StreamsEventBus struct {
	client        redis.UniversalClient
	logger        *zap.Logger
	consumerGroup string
	consumerName  string
	maxLen        int64
}

// NewStreamsEventBus creates a new Redis Streams event bus. maxLen caps
// each stream approximately; zero leaves streams unbounded.
func NewStreamsEventBus(client redis.UniversalClient, consumerGroup, consumerName string, maxLen int64, logger *zap.Logger) (*StreamsEventBus, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerGroup == "" || consumerName == "" {
		return nil, errors.New("consumer group and name are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamsEventBus{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
		maxLen:        maxLen,
	}, nil
}

// Publish appends an event to the topic's stream
func (e *StreamsEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	streamKey := StreamKey(topic)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}
	if e.maxLen > 0 {
		args.MaxLen = e.maxLen
		args.Approx = true
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("device_id", event.DeviceID),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe reads the topic's stream through the consumer group until ctx
// is cancelled
func (e *StreamsEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	streamKey := StreamKey(topic)

	err := e.client.XGroupCreateMkStream(ctx, streamKey, e.consumerGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("consumer_group", e.consumerGroup),
		zap.String("consumer", e.consumerName))

	go e.readStream(ctx, streamKey, handler)

	return nil
}

func (e *StreamsEventBus) readStream(ctx context.Context, streamKey string, handler ports.EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    e.consumerGroup,
			Consumer: e.consumerName,
			Streams:  []string{streamKey, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				e.processMessage(ctx, streamKey, message, handler)
			}
		}
	}
}

func (e *StreamsEventBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) {
	event, err := decodeMessage(message)
	if err != nil {
		e.logger.Error("dropping malformed stream message",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		// Malformed entries are acknowledged so they are not redelivered.
		e.ack(ctx, streamKey, message.ID)
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	e.ack(ctx, streamKey, message.ID)
}

func (e *StreamsEventBus) ack(ctx context.Context, streamKey, id string) {
	if err := e.client.XAck(ctx, streamKey, e.consumerGroup, id).Err(); err != nil {
		e.logger.Error("failed to acknowledge message",
			zap.String("stream", streamKey),
			zap.String("message_id", id),
			zap.Error(err))
	}
}

// Close is a no-op; the Redis client is owned by the caller.
func (e *StreamsEventBus) Close() error {
	return nil
}

func decodeMessage(message redis.XMessage) (domain.Event, error) {
	var event domain.Event
	data, ok := message.Values["data"].(string)
	if !ok {
		return event, errors.New("missing data field")
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

// StreamKey returns the Redis stream key for a topic
func StreamKey(topic string) string {
	return "emud:events:" + topic
}
