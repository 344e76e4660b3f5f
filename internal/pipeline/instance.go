// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/tomtom215/beacon/internal/batching"
	"github.com/tomtom215/beacon/internal/config"
	"github.com/tomtom215/beacon/internal/connectivity"
	"github.com/tomtom215/beacon/internal/consent"
	"github.com/tomtom215/beacon/internal/datalayer"
	"github.com/tomtom215/beacon/internal/dispatch"
	"github.com/tomtom215/beacon/internal/dispatchqueue"
	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/module"
	"github.com/tomtom215/beacon/internal/publishsettings"
	"github.com/tomtom215/beacon/internal/request"
	"github.com/tomtom215/beacon/internal/rwqueue"
	"github.com/tomtom215/beacon/internal/storage"
)

var (
	// ErrPipelineDisabled is reported on the completion of requests submitted
	// while the merged policy disables the pipeline.
	ErrPipelineDisabled = dispatch.ErrDisabledByPolicy

	// ErrConsentDisabled is returned by consent operations when consent
	// gating is not configured.
	ErrConsentDisabled = errors.New("pipeline: consent management not enabled")

	// ErrNilConfig is returned by New without a configuration.
	ErrNilConfig = errors.New("pipeline: config is required")
)

// Options configure a new Instance.
type Options struct {
	Config  *config.Config
	Backend storage.Backend

	// Dispatchers deliver requests. Without any, requests are queued until
	// a dispatcher is available.
	Dispatchers []module.Dispatcher

	// Modules are extra collectors and validators, visited after the
	// built-in modules.
	Modules []module.Module

	// Connectivity overrides the provider derived from the configuration.
	Connectivity connectivity.Provider

	// HTTPClient is used for policy fetches.
	HTTPClient *http.Client

	// Static is merged into every payload with the lowest precedence.
	Static map[string]any
}

// Instance is one running pipeline.
type Instance struct {
	name  string
	cfg   *config.Config
	local publishsettings.Local
	log   zerolog.Logger

	rw           *rwqueue.Queue
	serial       *rwqueue.Serial
	manager      *dispatch.Manager
	queue        *dispatchqueue.Queue
	dataLayer    *datalayer.DataLayer
	consent      *consent.Module
	connectivity *connectivity.Module
	monitor      *connectivity.Monitor
	batching     *batching.Module
	retriever    *publishsettings.Retriever
	refresher    *publishsettings.Refresher

	mu       sync.RWMutex
	settings publishsettings.Settings
}

// New assembles an instance. It does not start any work: run Services on a
// supervisor, then call Enable (Registry.Add does both).
func New(ctx context.Context, opts Options) (*Instance, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if opts.Backend == nil {
		return nil, errors.New("pipeline: storage backend is required")
	}

	name := storage.Namespace(cfg.Instance.Account, cfg.Instance.Profile, cfg.Instance.Environment)
	inst := &Instance{
		name:  name,
		cfg:   cfg,
		local: cfg.PolicyLocal(),
		log:   logging.WithComponent("pipeline").With().Str("instance", name).Logger(),
		rw:    rwqueue.New(name),
	}
	inst.serial = rwqueue.NewScopedSerial("chain-"+name, func(ctx context.Context) context.Context {
		return logging.ContextWithInstance(ctx, name)
	})
	store := func(mod string) *storage.DiskStorage {
		return storage.NewDiskStorage(opts.Backend, name, mod, inst.rw)
	}

	inst.queue = dispatchqueue.New(store(dispatchqueue.ModuleName), inst.rw, name)

	inst.dataLayer = datalayer.New(store(datalayer.ModuleID), inst.rw, opts.Static)
	inst.dataLayer.SetSessionLength(cfg.DataLayer.SessionLength)

	provider := opts.Connectivity
	if provider == nil {
		if cfg.Connectivity.URL != "" {
			provider = connectivity.NewHTTPProvider(cfg.Connectivity.URL, cfg.Connectivity.CheckTimeout)
		} else {
			provider = connectivity.NewStaticProvider(true)
		}
	}
	inst.connectivity = connectivity.New(provider, cfg.Connectivity.CheckTimeout)
	inst.monitor = connectivity.NewMonitor(inst.connectivity, cfg.Connectivity.Interval)

	inst.batching = batching.New(batching.Settings{})

	modules := []module.Module{inst.dataLayer}
	if cfg.Consent.Enabled {
		inst.consent = consent.New(store(consent.ModuleID))
		modules = append(modules, inst.consent)
	}
	modules = append(modules, inst.connectivity, inst.batching)
	modules = append(modules, opts.Modules...)
	for _, d := range opts.Dispatchers {
		modules = append(modules, d)
	}

	manager, err := dispatch.NewManager(dispatch.Config{
		Instance:            name,
		DispatchTimeout:     cfg.Dispatch.Timeout,
		StartupReleaseDelay: cfg.Dispatch.StartupReleaseDelay,
		Breaker: dispatch.BreakerConfig{
			MaxRequests:      cfg.Dispatch.BreakerMaxRequests,
			Interval:         cfg.Dispatch.BreakerInterval,
			Timeout:          cfg.Dispatch.BreakerTimeout,
			FailureThreshold: cfg.Dispatch.BreakerFailureThreshold,
		},
	}, inst.serial, inst.rw, inst.queue, modules...)
	if err != nil {
		inst.rw.Close()
		return nil, fmt.Errorf("pipeline %s: %w", name, err)
	}
	inst.manager = manager

	var cached *publishsettings.Policy
	if cfg.Policy.Fetch {
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: cfg.Policy.FetchTimeout}
		}
		url := cfg.PolicySource().Resolve()
		inst.retriever = publishsettings.NewRetriever(ctx, url, client, store(publishsettings.ModuleName), inst.applyPolicy)
		inst.refresher = publishsettings.NewRefresher(inst.retriever, cfg.Policy.CheckInterval)
		if p, ok := inst.retriever.Cached(); ok {
			cached = &p
		}
	}
	inst.applySettings(publishsettings.Merge(inst.local, cached))
	return inst, nil
}

// Name returns the instance namespace, "account.profile.environment".
func (i *Instance) Name() string {
	return i.name
}

// Services returns the long-running services of the instance: the chain
// executor first.
func (i *Instance) Services() []suture.Service {
	services := []suture.Service{i.serial, i.monitor}
	if i.refresher != nil {
		services = append(services, i.refresher)
	}
	return services
}

// Enable enables the module chain. Module failures are returned but do not
// stop the remaining modules.
func (i *Instance) Enable(ctx context.Context) error {
	i.manager.Configure(i.chainSettings(i.Settings()))
	err := i.manager.Enable(ctx, request.Enable{Config: i.cfg})
	i.log.Info().Err(err).Msg("Pipeline enabled")
	return err
}

// Disable disables the module chain. Queued requests stay persisted.
func (i *Instance) Disable(ctx context.Context) error {
	if err := i.manager.Disable(ctx); err != nil {
		return err
	}
	i.log.Info().Msg("Pipeline disabled")
	return nil
}

// Close stops the chain, flushes pending storage writes and stops the
// storage queue. Track requests that never ran complete with
// dispatch.ErrShutdown. The instance cannot be used afterwards.
func (i *Instance) Close() error {
	i.manager.Close()
	err := i.rw.Flush()
	i.rw.Close()
	return err
}

// Track submits an event. The request UUID is returned and added to the
// payload as request_uuid. completion, when not nil, fires exactly once.
func (i *Instance) Track(ctx context.Context, payload request.Payload, completion request.Completion) string {
	t := request.NewTrack(payload, completion)
	t.MergeMissing(map[string]any{request.KeyRequestUUID: t.UUID()})
	i.manager.Track(t)
	if i.retriever != nil {
		i.retriever.Refresh(ctx)
	}
	return t.UUID()
}

// JoinTrace tags every following event with trace id until LeaveTrace or
// the end of the session.
func (i *Instance) JoinTrace(ctx context.Context, id string) {
	i.dataLayer.JoinTrace(ctx, id)
}

// LeaveTrace stops tagging events with a trace id.
func (i *Instance) LeaveTrace(ctx context.Context) {
	i.dataLayer.LeaveTrace(ctx)
}

// DataLayer returns the persistent data layer.
func (i *Instance) DataLayer() *datalayer.DataLayer {
	return i.dataLayer
}

// Connectivity returns the connectivity module.
func (i *Instance) Connectivity() *connectivity.Module {
	return i.connectivity
}

// SetConsent records a consent decision.
func (i *Instance) SetConsent(ctx context.Context, status consent.Status, categories []string) error {
	if i.consent == nil {
		return ErrConsentDisabled
	}
	i.consent.SetStatus(ctx, status, categories)
	return nil
}

// Consent returns the current consent preferences.
func (i *Instance) Consent() (consent.Preferences, error) {
	if i.consent == nil {
		return consent.Preferences{}, ErrConsentDisabled
	}
	return i.consent.Preferences(), nil
}

// ReleaseQueue asks the chain to deliver queued requests. Validators may
// still hold them back.
func (i *Instance) ReleaseQueue() {
	i.manager.ReleaseQueue("requested")
}

// QueueLen returns the number of queued requests once previously submitted
// requests have been processed, or ctx.Err() when ctx ends first.
func (i *Instance) QueueLen(ctx context.Context) (int, error) {
	ch := make(chan int, 1)
	if err := i.serial.Do(ctx, func(ctx context.Context) {
		ch <- i.manager.QueueLen(ctx)
	}); err != nil {
		return 0, err
	}
	return <-ch, nil
}

// Settings returns the merged policy settings in effect.
func (i *Instance) Settings() publishsettings.Settings {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.settings
}

// RefreshPolicy fetches the remote policy when a fetch is due and waits for
// it. It reports false when policy fetching is off or not due.
func (i *Instance) RefreshPolicy(ctx context.Context) (bool, error) {
	if i.retriever == nil {
		return false, nil
	}
	return i.retriever.RefreshSync(ctx)
}

// applyPolicy merges a fetched policy. The log level follows the policy
// unless the operator pinned one.
func (i *Instance) applyPolicy(p publishsettings.Policy) {
	merged := publishsettings.Merge(i.local, &p)
	i.applySettings(merged)
	i.manager.Configure(i.chainSettings(merged))

	if !i.local.IsExplicit(publishsettings.FieldLogLevel) && merged.LogLevel != "" {
		logging.SetLevel(logging.PolicyLevel(merged.LogLevel))
	}
	i.log.Info().
		Bool("enabled", merged.Enabled).
		Bool("batching", merged.BatchingEnabled).
		Int("batch_size", merged.BatchSize).
		Int("dispatch_after", merged.DispatchAfter).
		Int("queue_limit", merged.QueueLimit).
		Msg("Policy applied")
}

func (i *Instance) applySettings(s publishsettings.Settings) {
	i.mu.Lock()
	i.settings = s
	i.mu.Unlock()

	i.batching.Configure(batching.Settings{
		Enabled:       s.BatchingEnabled,
		BatchSize:     s.BatchSize,
		DispatchAfter: s.DispatchAfter,
		MaxQueueSize:  s.QueueLimit,
		BypassEvents:  i.cfg.Dispatch.BypassEvents,
	})
}

func (i *Instance) chainSettings(s publishsettings.Settings) dispatch.Settings {
	batch := 0
	if s.BatchingEnabled {
		batch = s.BatchSize
	}
	return dispatch.Settings{
		DispatchAfter: s.DispatchAfter,
		BatchSize:     batch,
		Queue: dispatchqueue.Limits{
			MaxSize: s.QueueLimit,
			MaxAge:  time.Duration(s.DispatchExpirationDays) * 24 * time.Hour,
		},
		Disabled:            !s.Enabled,
		DisabledDispatchers: s.DisabledDispatchers(),
	}
}
