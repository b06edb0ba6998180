package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SnapshotSource provides the current device state sent on connect
type SnapshotSource interface {
	Snapshot() *domain.DeviceSnapshot
}

// Message is one frame sent to the client
type Message struct {
	Kind     string                 `json:"kind"`
	Event    *domain.Event          `json:"event,omitempty"`
	Snapshot *domain.DeviceSnapshot `json:"snapshot,omitempty"`
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	device   SnapshotSource
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, device SnapshotSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		eventBus: eventBus,
		device:   device,
		logger:   logger,
	}
}

// HandleDeviceStream sends the current snapshot, then every lifecycle event
// of the device until the client disconnects
func (h *Handler) HandleDeviceStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	snapshot := h.device.Snapshot()
	h.logger.Info("WebSocket connection established",
		zap.String("device_id", snapshot.DeviceID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events := make(chan domain.Event, 16)
	if err := h.eventBus.Subscribe(ctx, domain.EventTopic, h.forward(snapshot.DeviceID, events)); err != nil {
		h.logger.Error("failed to subscribe to events", zap.Error(err))
		return
	}

	go h.readPump(conn, cancel)

	if err := h.write(conn, Message{Kind: "snapshot", Snapshot: snapshot}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if err := h.write(conn, Message{Kind: "event", Event: &event}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// forward returns an event handler passing the device's events to ch
func (h *Handler) forward(deviceID string, ch chan<- domain.Event) ports.EventHandler {
	return func(ctx context.Context, event domain.Event) error {
		if event.DeviceID != deviceID {
			return nil
		}
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}
}

// readPump discards client frames and cancels the stream once the client
// goes away
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Error("failed to write message", zap.Error(err))
		return err
	}
	return nil
}
