// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package request defines the requests routed through the module chain.
//
// A Track carries one telemetry event: a payload, an optional completion and
// the ModuleResponses appended by modules as the request moves through the
// chain. Enable and Disable carry lifecycle transitions; Custom carries
// coordination messages between modules.
package request

import (
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Well-known payload keys.
const (
	KeyEvent          = "event"
	KeyWasQueued      = "was_queued"
	KeyQueueReason    = "queue_reason"
	KeyBypassQueue    = "bypass_queue"
	KeyReleaseRequest = "release_request"
	KeyTraceID        = "trace_id"
	KeyRequestUUID    = "request_uuid"
	KeyTimestampUnix  = "timestamp_unix"
)

// Payload is the semi-structured event body.
type Payload map[string]any

// Clone returns a shallow copy of p. A nil payload clones to an empty one.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	maps.Copy(out, p)
	return out
}

// String returns the string value stored under key, or "".
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Bool reports whether key holds true (bool) or "true" (legacy string form).
func (p Payload) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	default:
		return false
	}
}

// Result is the tri-state outcome reported to a caller's completion.
type Result struct {
	Success bool
	Info    map[string]any
	Err     error
}

// Completion receives the aggregate outcome of a track request.
type Completion func(Result)

// ModuleResponse records one module's outcome for a request.
type ModuleResponse struct {
	Module  string
	Success bool
	Info    map[string]any
	Err     error
}

// Kind identifies a request type.
type Kind int

const (
	KindTrack Kind = iota
	KindEnable
	KindDisable
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindEnable:
		return "enable"
	case KindDisable:
		return "disable"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Request is any message routed through the module chain.
type Request interface {
	Kind() Kind
}

// Track is a single telemetry event in flight.
type Track struct {
	uuid       string
	createdAt  time.Time
	completion Completion

	mu        sync.Mutex
	payload   Payload
	responses []ModuleResponse
	completed bool
}

// NewTrack creates a track request with a fresh UUID. The payload is copied.
func NewTrack(payload Payload, completion Completion) *Track {
	return &Track{
		uuid:       uuid.New().String(),
		createdAt:  time.Now(),
		completion: completion,
		payload:    payload.Clone(),
	}
}

// Restore recreates a track request with a known UUID, used when replaying
// persisted entries.
func Restore(id string, payload Payload, completion Completion) *Track {
	t := NewTrack(payload, completion)
	if id != "" {
		t.uuid = id
	}
	return t
}

// Kind implements Request.
func (t *Track) Kind() Kind {
	return KindTrack
}

// UUID returns the request identifier.
func (t *Track) UUID() string {
	return t.uuid
}

// CreatedAt returns when the request was created.
func (t *Track) CreatedAt() time.Time {
	return t.createdAt
}

// Event returns the event name, if any.
func (t *Track) Event() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.payload.String(KeyEvent)
}

// Payload returns a copy of the current payload.
func (t *Track) Payload() Payload {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.payload.Clone()
}

// Get returns the payload value stored under key.
func (t *Track) Get(key string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.payload[key]
	return v, ok
}

// Merge copies data into the payload, overwriting existing keys.
func (t *Track) Merge(data map[string]any) {
	if len(data) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	maps.Copy(t.payload, data)
}

// MergeMissing copies only keys that are not already present.
func (t *Track) MergeMissing(data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range data {
		if _, ok := t.payload[k]; !ok {
			t.payload[k] = v
		}
	}
}

// Delete removes keys from the payload.
func (t *Track) Delete(keys ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		delete(t.payload, k)
	}
}

// AppendResponse records a module outcome. Responses are never removed.
func (t *Track) AppendResponse(r ModuleResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses = append(t.responses, r)
}

// Responses returns a copy of the recorded module responses in append order.
func (t *Track) Responses() []ModuleResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ModuleResponse, len(t.responses))
	copy(out, t.responses)
	return out
}

// Completion returns the caller's completion (may be nil).
func (t *Track) Completion() Completion {
	return t.completion
}

// Complete folds the recorded responses into a Result and invokes the
// completion. Only the first call has any effect.
func (t *Track) Complete() Result {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return Result{}
	}
	t.completed = true
	res := aggregate(t.responses)
	t.mu.Unlock()

	if t.completion != nil {
		t.completion(res)
	}
	return res
}

// Fail completes the request with err without consulting responses.
func (t *Track) Fail(err error) {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	t.mu.Unlock()

	if t.completion != nil {
		t.completion(Result{Success: false, Err: err})
	}
}

// Completed reports whether the completion already fired.
func (t *Track) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// aggregate: success unless any module failed; the first error wins and
// info maps merge in chain order.
func aggregate(responses []ModuleResponse) Result {
	res := Result{Success: true}
	for _, r := range responses {
		if len(r.Info) > 0 {
			if res.Info == nil {
				res.Info = make(map[string]any)
			}
			maps.Copy(res.Info, r.Info)
		}
		if !r.Success {
			res.Success = false
			if res.Err == nil {
				res.Err = r.Err
			}
		}
	}
	return res
}

// Enable asks modules to activate.
type Enable struct {
	// Config is the active configuration snapshot; modules type-assert what they need.
	Config any
}

// Kind implements Request.
func (Enable) Kind() Kind { return KindEnable }

// Disable asks modules to tear down.
type Disable struct{}

// Kind implements Request.
func (Disable) Kind() Kind { return KindDisable }

// Custom carries coordination messages between modules.
type Custom struct {
	Name string
	Data map[string]any
}

// Kind implements Request.
func (Custom) Kind() Kind { return KindCustom }

// Coordination message names.
const (
	CustomReleaseQueue = "release_queue"
	CustomPurgeQueue   = "purge_queue"
	CustomConfigUpdate = "config_update"
)
