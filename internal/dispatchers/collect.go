// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package dispatchers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/beacon/internal/publishsettings"
	"github.com/tomtom215/beacon/internal/request"
)

// ErrNoEndpoint is returned by Enable when no collection URL is configured.
var ErrNoEndpoint = errors.New("collect: endpoint URL is required")

// CollectConfig configures the collect dispatcher.
type CollectConfig struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// Collect delivers payloads to an HTTP collection endpoint.
type Collect struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewCollect creates the collect dispatcher. A zero timeout means 10s.
func NewCollect(cfg CollectConfig) *Collect {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	return &Collect{
		url:     cfg.URL,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// ID returns the dispatcher identifier used by policy flags.
func (c *Collect) ID() string { return publishsettings.DispatcherCollect }

// Enable fails without an endpoint so the chain leaves the dispatcher out.
func (c *Collect) Enable(context.Context, request.Enable) error {
	if c.url == "" {
		return ErrNoEndpoint
	}
	return nil
}

// Disable implements module.Module.
func (c *Collect) Disable(context.Context, request.Disable) {}

// Dispatch posts the payload. Any non-2xx status is a failure.
func (c *Collect) Dispatch(ctx context.Context, t *request.Track) (map[string]any, error) {
	body, err := json.Marshal(t.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.post(ctx, body)
}

// DispatchBatch posts the payloads in one {"events": [...]} body, in order.
func (c *Collect) DispatchBatch(ctx context.Context, batch []*request.Track) (map[string]any, error) {
	events := make([]request.Payload, 0, len(batch))
	for _, t := range batch {
		events = append(events, t.Payload())
	}
	body, err := json.Marshal(map[string]any{"events": events})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}
	info, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	info["count"] = len(batch)
	return info, nil
}

func (c *Collect) post(ctx context.Context, body []byte) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create collect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collect request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("collect endpoint returned status %d", resp.StatusCode)
	}
	return map[string]any{"status": resp.StatusCode}, nil
}
