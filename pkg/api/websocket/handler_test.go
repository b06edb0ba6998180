package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	eventsmemory "github.com/aescanero/emud/pkg/adapters/events/memory"
	"github.com/aescanero/emud/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

type staticDevice struct{ snapshot domain.DeviceSnapshot }

func (d staticDevice) Snapshot() *domain.DeviceSnapshot {
	s := d.snapshot
	return &s
}

func TestHandleDeviceStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	bus := eventsmemory.NewInMemoryEventBus()
	device := staticDevice{domain.DeviceSnapshot{DeviceID: "dev-1", State: domain.StateInitialized}}

	router := gin.New()
	router.GET("/ws", NewHandler(bus, device, zaptest.NewLogger(t)).HandleDeviceStream)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first Message
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if first.Kind != "snapshot" || first.Snapshot == nil || first.Snapshot.DeviceID != "dev-1" {
		t.Fatalf("unexpected first message: %+v", first)
	}

	// The subscription is registered before the snapshot is written.
	ctx := context.Background()
	_ = bus.Publish(ctx, domain.EventTopic, domain.Event{ID: "other", DeviceID: "dev-2"})
	_ = bus.Publish(ctx, domain.EventTopic, domain.Event{ID: "e1", DeviceID: "dev-1", Type: domain.EventTypeStarted})

	var next Message
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if next.Kind != "event" || next.Event == nil || next.Event.ID != "e1" {
		t.Errorf("unexpected event message: %+v", next)
	}
}
