// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/beacon/internal/consent"
	"github.com/tomtom215/beacon/internal/datalayer"
	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/pipeline"
	"github.com/tomtom215/beacon/internal/request"
)

// DefaultWaitTimeout bounds how long a waiting track request blocks.
const DefaultWaitTimeout = 10 * time.Second

// Handler serves the pipeline API.
type Handler struct {
	registry    *pipeline.Registry
	waitTimeout time.Duration
}

// NewHandler creates a handler for registry. A zero waitTimeout uses
// DefaultWaitTimeout.
func NewHandler(registry *pipeline.Registry, waitTimeout time.Duration) *Handler {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &Handler{registry: registry, waitTimeout: waitTimeout}
}

// TrackRequest is the body of POST /track.
type TrackRequest struct {
	Event string         `json:"event" validate:"required,max=256"`
	Data  map[string]any `json:"data"`
	Wait  bool           `json:"wait"`
}

// TrackResponse reports a submitted request.
type TrackResponse struct {
	UUID    string         `json:"uuid"`
	Success *bool          `json:"success,omitempty"`
	Info    map[string]any `json:"info,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// TraceRequest is the body of PUT /trace.
type TraceRequest struct {
	ID string `json:"id" validate:"required,max=128"`
}

// ConsentRequest is the body of PUT /consent.
type ConsentRequest struct {
	Status     string   `json:"status" validate:"required,oneof=unknown consented notConsented"`
	Categories []string `json:"categories"`
}

// DataLayerRequest is the body of PUT /datalayer. Expiry is one of forever,
// session, restart or after; after requires TTLSeconds.
type DataLayerRequest struct {
	Data       map[string]any `json:"data" validate:"required,min=1"`
	Expiry     string         `json:"expiry" validate:"omitempty,oneof=forever session restart after"`
	TTLSeconds int            `json:"ttl_seconds" validate:"required_if=Expiry after,gte=0"`
}

func (h *Handler) instance(w http.ResponseWriter, r *http.Request) (*pipeline.Instance, bool) {
	name := chi.URLParam(r, "instance")
	inst, ok := h.registry.Get(name)
	if !ok {
		respondError(w, http.StatusNotFound, &APIError{
			Code:    CodeNotFound,
			Message: "instance not found: " + sanitizeLogValue(name),
		}, nil)
		return nil, false
	}
	return inst, true
}

// HealthLive always reports ok.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, "", map[string]string{"status": "ok"})
}

// HealthReady reports ready once an instance is registered.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	names := h.registry.Names()
	if len(names) == 0 {
		respondError(w, http.StatusServiceUnavailable, &APIError{
			Code:    CodeNotReady,
			Message: "no pipeline instance registered",
		}, nil)
		return
	}
	respondData(w, http.StatusOK, "", map[string]any{"status": "ready", "instances": names})
}

// Instances lists registered instances.
func (h *Handler) Instances(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, "", h.registry.Names())
}

// Track submits an event.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	var req TrackRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr, nil)
		return
	}

	payload := make(request.Payload, len(req.Data)+1)
	for k, v := range req.Data {
		payload[k] = v
	}
	payload[request.KeyEvent] = req.Event

	if !req.Wait {
		id := inst.Track(r.Context(), payload, nil)
		respondData(w, http.StatusAccepted, inst.Name(), TrackResponse{UUID: id})
		return
	}

	done := make(chan request.Result, 1)
	id := inst.Track(r.Context(), payload, func(res request.Result) {
		done <- res
	})

	ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
	defer cancel()
	select {
	case res := <-done:
		resp := TrackResponse{UUID: id, Success: &res.Success, Info: res.Info}
		status := http.StatusOK
		if res.Err != nil {
			resp.Error = res.Err.Error()
			status = http.StatusBadGateway
			if errors.Is(res.Err, pipeline.ErrPipelineDisabled) {
				status = http.StatusServiceUnavailable
			}
		}
		respondData(w, status, inst.Name(), resp)
	case <-ctx.Done():
		// Still queued or in flight; the request is not lost.
		logging.Ctx(r.Context()).Debug().Str("uuid", id).Msg("Track request still pending at wait timeout")
		respondData(w, http.StatusAccepted, inst.Name(), TrackResponse{UUID: id})
	}
}

// JoinTrace tags following events with a trace id.
func (h *Handler) JoinTrace(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	var req TraceRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr, nil)
		return
	}
	inst.JoinTrace(context.WithoutCancel(r.Context()), req.ID)
	respondData(w, http.StatusOK, inst.Name(), map[string]string{request.KeyTraceID: req.ID})
}

// LeaveTrace stops tagging events with a trace id.
func (h *Handler) LeaveTrace(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	inst.LeaveTrace(context.WithoutCancel(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// GetConsent returns the consent preferences.
func (h *Handler) GetConsent(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	prefs, err := inst.Consent()
	if err != nil {
		respondConsentDisabled(w)
		return
	}
	respondData(w, http.StatusOK, inst.Name(), prefs)
}

// SetConsent records a consent decision.
func (h *Handler) SetConsent(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	var req ConsentRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr, nil)
		return
	}
	if err := inst.SetConsent(context.WithoutCancel(r.Context()), consent.Status(req.Status), req.Categories); err != nil {
		respondConsentDisabled(w)
		return
	}
	prefs, _ := inst.Consent()
	respondData(w, http.StatusOK, inst.Name(), prefs)
}

func respondConsentDisabled(w http.ResponseWriter) {
	respondError(w, http.StatusConflict, &APIError{
		Code:    CodeConsentDisabled,
		Message: "consent management is not enabled for this instance",
	}, nil)
}

// Settings returns the merged policy settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, inst.Name(), inst.Settings())
}

// Queue returns the queue length.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	n, err := inst.QueueLen(r.Context())
	if err != nil {
		respondError(w, http.StatusGatewayTimeout, &APIError{
			Code:    CodeTimeout,
			Message: "pipeline busy, queue length unavailable",
		}, err)
		return
	}
	respondData(w, http.StatusOK, inst.Name(), map[string]int{"length": n})
}

// ReleaseQueue requests delivery of queued events.
func (h *Handler) ReleaseQueue(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	inst.ReleaseQueue()
	w.WriteHeader(http.StatusAccepted)
}

// GetDataLayer returns every live data layer value.
func (h *Handler) GetDataLayer(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	respondData(w, http.StatusOK, inst.Name(), inst.DataLayer().All(r.Context()))
}

// AddDataLayer stores data layer values.
func (h *Handler) AddDataLayer(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	var req DataLayerRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr, nil)
		return
	}
	inst.DataLayer().Add(context.WithoutCancel(r.Context()), req.Data, expiryOf(req))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDataLayer removes one data layer key.
func (h *Handler) DeleteDataLayer(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.instance(w, r)
	if !ok {
		return
	}
	inst.DataLayer().Delete(context.WithoutCancel(r.Context()), chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

func expiryOf(req DataLayerRequest) datalayer.Expiry {
	switch req.Expiry {
	case "session":
		return datalayer.Session()
	case "restart":
		return datalayer.UntilRestart()
	case "after":
		return datalayer.After(time.Duration(req.TTLSeconds) * time.Second)
	default:
		return datalayer.Forever()
	}
}
