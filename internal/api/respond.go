// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/validation"
)

// Error codes.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidBody      = "INVALID_BODY"
	CodeNotFound         = "INSTANCE_NOT_FOUND"
	CodeConsentDisabled  = "CONSENT_DISABLED"
	CodeTrackFailed      = "TRACK_FAILED"
	CodeTimeout          = "TIMEOUT"
	CodeNotReady         = "NOT_READY"
	maxRequestBodyBytes  = 1 << 20
	responseStatusOK     = "success"
	responseStatusFailed = "error"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata carries response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Instance  string    `json:"instance,omitempty"`
}

// APIError is a machine-readable error.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func respondJSON(w http.ResponseWriter, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, status int, instance string, data any) {
	respondJSON(w, status, &APIResponse{
		Status:   responseStatusOK,
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now(), Instance: instance},
	})
}

func respondError(w http.ResponseWriter, status int, apiErr *APIError, err error) {
	if err != nil {
		logging.Error().
			Str("code", sanitizeLogValue(apiErr.Code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}
	respondJSON(w, status, &APIResponse{
		Status:   responseStatusFailed,
		Metadata: Metadata{Timestamp: time.Now()},
		Error:    apiErr,
	})
}

// decodeJSON reads a bounded JSON body into v and validates it.
func decodeJSON(r *http.Request, v any) *APIError {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		return &APIError{Code: CodeInvalidBody, Message: "failed to read request body"}
	}
	if len(body) > maxRequestBodyBytes {
		return &APIError{Code: CodeInvalidBody, Message: "request body too large"}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &APIError{Code: CodeInvalidBody, Message: "request body is not valid JSON"}
	}
	return validateRequest(v)
}

// validateRequest converts validation failures into an API error listing
// each failed field.
func validateRequest(v any) *APIError {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return nil
	}
	details := make(map[string]any, len(verr.Fields()))
	for _, fe := range verr.Fields() {
		details[fe.Field()] = fe.Error()
	}
	return &APIError{Code: CodeValidation, Message: verr.Error(), Details: details}
}
