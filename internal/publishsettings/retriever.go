// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package publishsettings

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/metrics"
	"github.com/tomtom215/beacon/internal/storage"
)

// ModuleName is the storage module of the policy cache.
const ModuleName = "publishsettings"

// Fetch outcomes, used as metric labels.
const (
	OutcomeFetched     = "fetched"
	OutcomeNotModified = "not_modified"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

const (
	defaultTimeout = 10 * time.Second
	maxPageBytes   = 1 << 20
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("publishsettings: unexpected status %d", e.Code)
}

// UpdateFunc receives a newly fetched policy.
type UpdateFunc func(Policy)

// Retriever keeps the cached Policy fresh.
type Retriever struct {
	url      string
	client   *http.Client
	store    *storage.DiskStorage
	onUpdate UpdateFunc
	log      zerolog.Logger

	mu          sync.Mutex
	now         func() time.Time
	cached      *Policy
	hasFetched  bool
	fetching    bool
	lastAttempt time.Time
}

// NewRetriever creates a Retriever for url and loads the cached policy from
// store. A nil client uses a client with a 10s timeout.
func NewRetriever(ctx context.Context, url string, client *http.Client, store *storage.DiskStorage, onUpdate UpdateFunc) *Retriever {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	r := &Retriever{
		url:      url,
		client:   client,
		store:    store,
		onUpdate: onUpdate,
		log:      logging.WithComponent("publishsettings"),
		now:      time.Now,
	}
	var p Policy
	if store.Retrieve(ctx, "", &p) {
		r.cached = &p
		r.log.Debug().Time("last_fetch", p.LastFetch).Msg("Loaded cached policy")
	}
	return r
}

// SetClock replaces the time source.
func (r *Retriever) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// URL returns the page URL.
func (r *Retriever) URL() string {
	return r.url
}

// Cached returns a copy of the cached policy.
func (r *Retriever) Cached() (Policy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		return Policy{}, false
	}
	return *r.cached, true
}

// Refresh starts a fetch in the background when one is due and returns
// immediately.
func (r *Retriever) Refresh(ctx context.Context) {
	if !r.begin() {
		return
	}
	go func() {
		if err := r.fetch(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn().Err(err).Str("url", r.url).Msg("Policy fetch failed")
		}
	}()
}

// RefreshSync fetches when a fetch is due and waits for it. It reports
// whether a request was made.
func (r *Retriever) RefreshSync(ctx context.Context) (bool, error) {
	if !r.begin() {
		return false, nil
	}
	return true, r.fetch(ctx)
}

// begin claims the single in-flight slot when a fetch is due.
func (r *Retriever) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetching {
		return false
	}
	now := r.now()
	switch {
	case !r.hasFetched:
	case r.cached == nil:
		// No policy yet: retry on the default schedule.
		if !now.After(r.lastAttempt.Add(time.Duration(DefaultMinutesBetweenRefresh * float64(time.Minute)))) {
			return false
		}
	case !r.cached.Due(now):
		return false
	}
	r.hasFetched = true
	r.fetching = true
	r.lastAttempt = now
	return true
}

func (r *Retriever) fetch(ctx context.Context) error {
	defer func() {
		r.mu.Lock()
		r.fetching = false
		r.mu.Unlock()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, http.NoBody)
	if err != nil {
		r.attemptFailed(ctx, OutcomeError)
		return fmt.Errorf("publishsettings: build request: %w", err)
	}
	if prev, ok := r.Cached(); ok {
		if !prev.LastFetch.IsZero() {
			req.Header.Set("If-Modified-Since", prev.LastFetch.UTC().Format(http.TimeFormat))
		}
		if prev.ETag != "" {
			req.Header.Set("If-None-Match", prev.ETag)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.attemptFailed(ctx, OutcomeError)
		return fmt.Errorf("publishsettings: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		r.attemptFailed(ctx, OutcomeNotModified)
		return nil
	default:
		r.attemptFailed(ctx, OutcomeError)
		return &StatusError{Code: resp.StatusCode}
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		r.attemptFailed(ctx, OutcomeError)
		return fmt.Errorf("publishsettings: read body: %w", err)
	}

	r.mu.Lock()
	now := r.now()
	r.mu.Unlock()
	p, err := Parse(page, now)
	if err != nil {
		r.attemptFailed(ctx, OutcomeInvalid)
		return err
	}

	r.mu.Lock()
	p.LastFetch = r.stamp()
	p.ETag = resp.Header.Get("ETag")
	r.cached = p
	update := *p
	r.mu.Unlock()

	r.save(ctx, update)
	metrics.RecordPolicyFetch(OutcomeFetched)
	r.log.Info().
		Int("batch_size", update.BatchSize).
		Int("queue_limit", update.QueueLimit).
		Float64("refresh_minutes", update.MinutesBetweenRefresh).
		Bool("enabled", update.Enabled).
		Msg("Policy updated")

	if r.onUpdate != nil {
		r.onUpdate(update)
	}
	return nil
}

// attemptFailed advances lastFetch of the cached policy without changing it.
func (r *Retriever) attemptFailed(ctx context.Context, outcome string) {
	metrics.RecordPolicyFetch(outcome)
	r.mu.Lock()
	if r.cached == nil {
		r.mu.Unlock()
		return
	}
	r.cached.LastFetch = r.stamp()
	snapshot := *r.cached
	r.mu.Unlock()
	r.save(ctx, snapshot)
}

// stamp returns the new lastFetch, never earlier than the cached one.
// Caller must hold r.mu.
func (r *Retriever) stamp() time.Time {
	now := r.now()
	if r.cached != nil && r.cached.LastFetch.After(now) {
		return r.cached.LastFetch
	}
	return now
}

func (r *Retriever) save(ctx context.Context, p Policy) {
	r.store.Save(ctx, "", p, func(err error) {
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to persist policy")
		}
	})
}
