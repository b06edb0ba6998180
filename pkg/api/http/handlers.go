package http

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aescanero/emud/internal/application/workers"
	"github.com/aescanero/emud/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DeviceResponse represents the device state
type DeviceResponse struct {
	*domain.DeviceSnapshot
	Pool *workers.HealthStatus `json:"pool"`
}

// DataPlaneResponse reports the engine's answer to a data-plane call
type DataPlaneResponse struct {
	Accepted bool `json:"accepted"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"checks": gin.H{
			"device": s.orchestrator.State().String(),
			"pool":   s.orchestrator.Pool().Health().GetStatus(),
		},
	})
}

// handleGetDevice returns the device snapshot
func (s *Server) handleGetDevice(c *gin.Context) {
	c.JSON(http.StatusOK, DeviceResponse{
		DeviceSnapshot: s.orchestrator.Snapshot(),
		Pool:           s.orchestrator.Pool().Health().GetStatus(),
	})
}

// lifecycleContext bounds how long a request waits on a lifecycle future
func (s *Server) lifecycleContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.lifecycleTimeout)
}

// handleInitialize brings the device up. A false result maps to 422 with the
// recorded failure.
func (s *Server) handleInitialize(c *gin.Context) {
	ctx, cancel := s.lifecycleContext(c)
	defer cancel()

	ok, err := s.orchestrator.Initialize().Await(ctx)
	if err != nil {
		s.writeLifecycleError(c, "initialize", err)
		return
	}

	snapshot := s.orchestrator.Snapshot()
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INITIALIZE_FAILED",
				Message: "emulator initialization failed",
				Details: snapshot,
			},
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// handleStart starts the device
func (s *Server) handleStart(c *gin.Context) {
	ctx, cancel := s.lifecycleContext(c)
	defer cancel()

	if _, err := s.orchestrator.Start().Await(ctx); err != nil {
		s.writeLifecycleError(c, "start", err)
		return
	}
	c.JSON(http.StatusOK, s.orchestrator.Snapshot())
}

// handleStop stops the device
func (s *Server) handleStop(c *gin.Context) {
	ctx, cancel := s.lifecycleContext(c)
	defer cancel()

	if _, err := s.orchestrator.Stop().Await(ctx); err != nil {
		s.writeLifecycleError(c, "stop", err)
		return
	}
	c.JSON(http.StatusOK, s.orchestrator.Snapshot())
}

// handleCleanup releases the device
func (s *Server) handleCleanup(c *gin.Context) {
	ctx, cancel := s.lifecycleContext(c)
	defer cancel()

	if _, err := s.orchestrator.Cleanup().Await(ctx); err != nil {
		s.writeLifecycleError(c, "cleanup", err)
		return
	}
	c.JSON(http.StatusOK, s.orchestrator.Snapshot())
}

// writeLifecycleError maps a lifecycle failure to a status code
func (s *Server) writeLifecycleError(c *gin.Context, operation string, err error) {
	s.logger.Error("lifecycle request failed",
		zap.String("operation", operation),
		zap.Error(err))

	switch {
	case domain.IsStateError(err):
		abortWithError(c, http.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		abortWithError(c, http.StatusGatewayTimeout, "TIMEOUT", "lifecycle operation still in progress")
	case errors.Is(err, context.Canceled):
		abortWithError(c, http.StatusServiceUnavailable, "CANCELLED", err.Error())
	default:
		abortWithError(c, http.StatusUnprocessableEntity, "LIFECYCLE_FAILED", err.Error())
	}
}

// writeDataPlaneError maps a data-plane guard failure to a status code
func (s *Server) writeDataPlaneError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotInitialized) {
		abortWithError(c, http.StatusConflict, "NOT_INITIALIZED", err.Error())
		return
	}
	abortWithError(c, http.StatusInternalServerError, "INTERNAL", err.Error())
}

// readBody reads a non-empty request body
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		abortWithError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return nil, false
	}
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return nil, false
	}
	if len(body) == 0 {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "request body is empty")
		return nil, false
	}
	return body, true
}

// handleLoadProgram loads the raw request body into CPU memory
func (s *Server) handleLoadProgram(c *gin.Context) {
	program, ok := readBody(c)
	if !ok {
		return
	}

	accepted, err := s.orchestrator.LoadProgram(program)
	if err != nil {
		s.writeDataPlaneError(c, err)
		return
	}
	if !accepted {
		c.JSON(http.StatusUnprocessableEntity, DataPlaneResponse{Accepted: false})
		return
	}
	c.JSON(http.StatusOK, DataPlaneResponse{Accepted: true})
}

// handleGetFrameBuffer returns the current frame as raw RGBA bytes
func (s *Server) handleGetFrameBuffer(c *gin.Context) {
	frame, err := s.orchestrator.GetFrameBuffer()
	if err != nil {
		s.writeDataPlaneError(c, err)
		return
	}
	if frame == nil {
		abortWithError(c, http.StatusServiceUnavailable, "FRAME_UNAVAILABLE", "no frame available")
		return
	}

	dev := s.orchestrator.Config().Device
	c.Header("X-Frame-Width", strconv.Itoa(dev.ScreenWidth))
	c.Header("X-Frame-Height", strconv.Itoa(dev.ScreenHeight))
	c.Data(http.StatusOK, "application/octet-stream", frame)
}

// handleQueueAudio queues little-endian signed 16-bit samples
func (s *Server) handleQueueAudio(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	if len(body)%2 != 0 {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "audio body must hold whole 16-bit samples")
		return
	}

	samples := make([]int16, len(body)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(body[2*i:]))
	}

	accepted, err := s.orchestrator.QueueAudio(samples)
	if err != nil {
		s.writeDataPlaneError(c, err)
		return
	}
	if !accepted {
		c.JSON(http.StatusUnprocessableEntity, DataPlaneResponse{Accepted: false})
		return
	}
	c.JSON(http.StatusOK, DataPlaneResponse{Accepted: true})
}

// handleSendNetwork sends the raw request body on a connection
func (s *Server) handleSendNetwork(c *gin.Context) {
	connID, err := strconv.Atoi(c.Param("conn"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "connection id must be an integer")
		return
	}
	data, ok := readBody(c)
	if !ok {
		return
	}

	accepted, err := s.orchestrator.SendNetworkData(connID, data)
	if err != nil {
		s.writeDataPlaneError(c, err)
		return
	}
	if !accepted {
		c.JSON(http.StatusUnprocessableEntity, DataPlaneResponse{Accepted: false})
		return
	}
	c.JSON(http.StatusOK, DataPlaneResponse{Accepted: true})
}
