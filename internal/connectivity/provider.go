// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Provider reports network reachability.
type Provider interface {
	Reachable(ctx context.Context) (bool, error)
}

// HTTPProvider considers the network reachable when a HEAD request to URL
// gets any response below 500.
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider creates a provider probing url with the given timeout.
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Reachable implements Provider.
func (p *HTTPProvider) Reachable(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < http.StatusInternalServerError, nil
}

// StaticProvider reports a value set by the host.
type StaticProvider struct {
	online atomic.Bool
}

// NewStaticProvider creates a provider with an initial state.
func NewStaticProvider(online bool) *StaticProvider {
	p := &StaticProvider{}
	p.online.Store(online)
	return p
}

// Set changes the reported state.
func (p *StaticProvider) Set(online bool) {
	p.online.Store(online)
}

// Reachable implements Provider.
func (p *StaticProvider) Reachable(context.Context) (bool, error) {
	return p.online.Load(), nil
}
