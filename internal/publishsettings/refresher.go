// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package publishsettings

import (
	"context"
	"time"
)

// Refresher checks the policy on a fixed interval. It implements
// suture.Service. The Retriever decides whether a check results in a request.
type Refresher struct {
	retriever *Retriever
	interval  time.Duration
}

// NewRefresher creates a refresher for r.
func NewRefresher(r *Retriever, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{retriever: r, interval: interval}
}

// String implements fmt.Stringer for suture service naming.
func (f *Refresher) String() string {
	return "policy-refresher"
}

// Serve checks once immediately, then every interval until ctx is canceled.
// Fetch errors are logged and never stop the service.
func (f *Refresher) Serve(ctx context.Context) error {
	f.check(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.check(ctx)
		}
	}
}

func (f *Refresher) check(ctx context.Context) {
	if _, err := f.retriever.RefreshSync(ctx); err != nil {
		f.retriever.log.Warn().Err(err).Str("url", f.retriever.url).Msg("Policy fetch failed")
	}
}
