package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to the daemon's HTTP API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Frame is a downloaded frame buffer
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

// APIError is a non-2xx daemon response
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("daemon returned %d", e.Status)
	}
	return fmt.Sprintf("daemon returned %d %s: %s", e.Status, e.Code, e.Message)
}

// NewClient creates a client for the daemon at baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Status returns the raw device snapshot
func (c *Client) Status(ctx context.Context) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/api/v1/device", nil)
	return body, err
}

// Lifecycle runs initialize, start, stop or cleanup
func (c *Client) Lifecycle(ctx context.Context, operation string) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodPost, "/api/v1/device/"+operation, nil)
	return body, err
}

// LoadProgram uploads a program image
func (c *Client) LoadProgram(ctx context.Context, program []byte) error {
	_, _, err := c.do(ctx, http.MethodPost, "/api/v1/device/program", program)
	return err
}

// FrameBuffer downloads the current frame
func (c *Client) FrameBuffer(ctx context.Context) (*Frame, error) {
	body, header, err := c.do(ctx, http.MethodGet, "/api/v1/device/framebuffer", nil)
	if err != nil {
		return nil, err
	}
	width, _ := strconv.Atoi(header.Get("X-Frame-Width"))
	height, _ := strconv.Atoi(header.Get("X-Frame-Height"))
	return &Frame{Width: width, Height: height, Pixels: body}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var decoded struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &decoded) == nil {
			apiErr.Code = decoded.Error.Code
			apiErr.Message = decoded.Error.Message
		}
		return nil, nil, apiErr
	}

	return body, resp.Header, nil
}
