package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/emud/pkg/domain"
	"go.uber.org/zap"
)

const (
	MaxConnections = 1024
	MaxPayload     = 8192
)

var (
	ErrNetworkNotInitialized = errors.New("network not initialized")
	ErrTooManyConnections    = errors.New("too many connections")
)

// Network is a simulated network stack with per-connection send queues
type Network struct {
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	initialized bool
	port        int
	nextID      int
	conns       map[int][][]byte
}

// NewNetwork creates an uninitialized network stack
func NewNetwork(opts Options) *Network {
	return &Network{opts: opts, logger: opts.logger(domain.SubsystemNetwork)}
}

// Init binds the stack to port
func (n *Network) Init(ctx context.Context, port int) domain.Status {
	if n.opts.failsInit(domain.SubsystemNetwork) || port < 1 || port > 65535 {
		n.logger.Error("network init refused", zap.Int("port", port))
		return statusFailed
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.initialized = true
	n.port = port
	n.conns = make(map[int][][]byte)
	n.logger.Info("network initialized", zap.Int("port", port))
	return domain.StatusOK
}

// Cleanup drops every connection
func (n *Network) Cleanup(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logger.Info("network cleanup complete", zap.Int("connections", len(n.conns)))
	n.initialized = false
	n.conns = nil
	return nil
}

// Connect opens a connection and returns its ID
func (n *Network) Connect() (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return 0, ErrNetworkNotInitialized
	}
	if len(n.conns) >= MaxConnections {
		return 0, ErrTooManyConnections
	}
	for {
		id := n.nextID
		n.nextID++
		if _, taken := n.conns[id]; !taken {
			n.conns[id] = nil
			return id, nil
		}
	}
}

// Disconnect closes a connection
func (n *Network) Disconnect(connectionID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.conns, connectionID)
}

// Send queues data on a connection. It returns false when the stack is not
// initialized, the payload is empty or too large, or the connection is
// unknown.
func (n *Network) Send(connectionID int, data []byte) bool {
	if len(data) == 0 || len(data) > MaxPayload || connectionID < 0 {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return false
	}
	queue, ok := n.conns[connectionID]
	if !ok {
		if !n.opts.AutoAccept || connectionID >= MaxConnections || len(n.conns) >= MaxConnections {
			n.logger.Debug("connection not found", zap.Int("connection_id", connectionID))
			return false
		}
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	n.conns[connectionID] = append(queue, buf)
	return true
}

// Pending returns the number of packets queued on a connection
func (n *Network) Pending(connectionID int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.conns[connectionID])
}

// Port returns the bound port
func (n *Network) Port() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.port
}
