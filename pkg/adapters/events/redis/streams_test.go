package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

func TestStreamKey(t *testing.T) {
	if got := StreamKey(domain.EventTopic); got != "emud:events:device.events" {
		t.Errorf("unexpected stream key: %s", got)
	}
}

func TestDecodeMessage(t *testing.T) {
	if _, err := decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{}}); err == nil {
		t.Error("expected error for message without data")
	}
	if _, err := decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": "{"}}); err == nil {
		t.Error("expected error for invalid json")
	}

	e, err := decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{
		"data": `{"id":"e1","type":"device.started","state":"running"}`,
	}})
	if err != nil {
		t.Fatalf("decodeMessage failed: %v", err)
	}
	if e.ID != "e1" || e.Type != domain.EventTypeStarted || e.State != domain.StateRunning {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestNewStreamsEventBusRequiresClient(t *testing.T) {
	if _, err := NewStreamsEventBus(nil, "g", "c", 0, nil); err == nil {
		t.Error("expected error without client")
	}
}

// TestStreamsRoundTrip needs a live server at EMUD_TEST_REDIS_ADDR.
func TestStreamsRoundTrip(t *testing.T) {
	addr := os.Getenv("EMUD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("EMUD_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	topic := "test-" + uuid.New().String()
	defer client.Del(context.Background(), StreamKey(topic))

	bus, err := NewStreamsEventBus(client, "emud-test", "consumer-1", 100, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewStreamsEventBus failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.Event, 1)
	if err := bus.Subscribe(ctx, topic, func(ctx context.Context, e domain.Event) error {
		got <- e
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(ctx, topic, domain.Event{ID: "e1", Type: domain.EventTypeInitialized}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case e := <-got:
		if e.ID != "e1" {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}
