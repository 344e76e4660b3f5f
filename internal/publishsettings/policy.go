// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package publishsettings

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/tomtom215/beacon/internal/logging"
)

// Policy field names. They are shared by the remote document, the cache blob
// and the "policy" section of the local configuration.
const (
	FieldBatterySaver          = "battery_saver"
	FieldDispatchExpiration    = "dispatch_expiration"
	FieldCollectEnabled        = "enable_collect"
	FieldTagManagementEnabled  = "enable_tag_management"
	FieldBatchSize             = "event_batch_size"
	FieldDispatchAfter         = "event_dispatch_after"
	FieldMinutesBetweenRefresh = "minutes_between_refresh"
	FieldQueueLimit            = "offline_dispatch_limit"
	FieldLogLevel              = "override_log"
	FieldWifiOnlySending       = "wifi_only_sending"
	FieldEnabled               = "_is_enabled"
	FieldBatchingEnabled       = "batching_enabled"
)

// Defaults used when a legacy document carries an unparseable number.
const (
	DefaultBatchSize             = 1
	DefaultDispatchExpiration    = 7
	DefaultQueueLimit            = 40
	DefaultMinutesBetweenRefresh = 15.0
)

// legacyKey is the object holding the string-encoded settings.
const legacyKey = "5"

// ErrInvalidDocument is returned when neither encoding can be decoded.
var ErrInvalidDocument = errors.New("publishsettings: invalid policy document")

// Policy is the remotely published pipeline policy.
type Policy struct {
	BatterySaver          bool    `json:"battery_saver"`
	DispatchExpiration    int     `json:"dispatch_expiration"`
	CollectEnabled        bool    `json:"enable_collect"`
	TagManagementEnabled  bool    `json:"enable_tag_management"`
	BatchSize             int     `json:"event_batch_size"`
	DispatchAfter         int     `json:"event_dispatch_after"`
	MinutesBetweenRefresh float64 `json:"minutes_between_refresh"`
	QueueLimit            int     `json:"offline_dispatch_limit"`

	// LogLevel is a zerolog level name. Legacy dev/qa/prod values are
	// translated on decode.
	LogLevel        string    `json:"override_log"`
	WifiOnlySending bool      `json:"wifi_only_sending"`
	Enabled         bool      `json:"_is_enabled"`
	LastFetch       time.Time `json:"lastFetch"`
	ETag            string    `json:"etag,omitempty"`
}

// RefreshInterval returns the minimum time between fetches.
func (p *Policy) RefreshInterval() time.Duration {
	return time.Duration(p.MinutesBetweenRefresh * float64(time.Minute))
}

// Due reports whether a new fetch is allowed at now.
func (p *Policy) Due(now time.Time) bool {
	return now.After(p.LastFetch.Add(p.RefreshInterval()))
}

// Decode parses a policy object in either encoding. now stamps LastFetch when
// the document does not carry one.
func Decode(data []byte, now time.Time) (*Policy, error) {
	if p, err := decodeLegacy(data, now); err == nil {
		return p, nil
	}
	p, err := decodeNative(data, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return p, nil
}

func decodeLegacy(data []byte, now time.Time) (*Policy, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	raw, ok := doc[legacyKey]
	if !ok {
		return nil, errors.New("no legacy settings object")
	}
	var v map[string]string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	for _, key := range []string{
		FieldBatterySaver, FieldDispatchExpiration, FieldCollectEnabled,
		FieldTagManagementEnabled, FieldBatchSize, FieldMinutesBetweenRefresh,
		FieldQueueLimit, FieldLogLevel, FieldWifiOnlySending, FieldEnabled,
	} {
		if _, ok := v[key]; !ok {
			return nil, fmt.Errorf("missing %s", key)
		}
	}

	p := &Policy{
		BatterySaver:          v[FieldBatterySaver] == "true",
		DispatchExpiration:    atoi(v[FieldDispatchExpiration], DefaultDispatchExpiration),
		CollectEnabled:        v[FieldCollectEnabled] == "true",
		TagManagementEnabled:  v[FieldTagManagementEnabled] == "true",
		BatchSize:             atoi(v[FieldBatchSize], DefaultBatchSize),
		MinutesBetweenRefresh: atof(v[FieldMinutesBetweenRefresh], DefaultMinutesBetweenRefresh),
		QueueLimit:            atoi(v[FieldQueueLimit], DefaultQueueLimit),
		LogLevel:              logging.PolicyLevel(v[FieldLogLevel]).String(),
		WifiOnlySending:       v[FieldWifiOnlySending] == "true",
		Enabled:               v[FieldEnabled] == "true",
		LastFetch:             now,
	}
	p.DispatchAfter = atoi(v[FieldDispatchAfter], p.BatchSize)
	return p, nil
}

// nativeDocument mirrors Policy with pointers so missing fields are detected.
type nativeDocument struct {
	BatterySaver          *bool      `json:"battery_saver"`
	DispatchExpiration    *int       `json:"dispatch_expiration"`
	CollectEnabled        *bool      `json:"enable_collect"`
	TagManagementEnabled  *bool      `json:"enable_tag_management"`
	BatchSize             *int       `json:"event_batch_size"`
	DispatchAfter         *int       `json:"event_dispatch_after"`
	MinutesBetweenRefresh *float64   `json:"minutes_between_refresh"`
	QueueLimit            *int       `json:"offline_dispatch_limit"`
	LogLevel              *string    `json:"override_log"`
	WifiOnlySending       *bool      `json:"wifi_only_sending"`
	Enabled               *bool      `json:"_is_enabled"`
	LastFetch             *time.Time `json:"lastFetch"`
	ETag                  string     `json:"etag"`
}

func decodeNative(data []byte, now time.Time) (*Policy, error) {
	var d nativeDocument
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if d.BatterySaver == nil || d.DispatchExpiration == nil || d.CollectEnabled == nil ||
		d.TagManagementEnabled == nil || d.BatchSize == nil || d.MinutesBetweenRefresh == nil ||
		d.QueueLimit == nil || d.LogLevel == nil || d.WifiOnlySending == nil || d.Enabled == nil {
		return nil, errors.New("missing required field")
	}

	p := &Policy{
		BatterySaver:          *d.BatterySaver,
		DispatchExpiration:    *d.DispatchExpiration,
		CollectEnabled:        *d.CollectEnabled,
		TagManagementEnabled:  *d.TagManagementEnabled,
		BatchSize:             *d.BatchSize,
		DispatchAfter:         *d.BatchSize,
		MinutesBetweenRefresh: *d.MinutesBetweenRefresh,
		QueueLimit:            *d.QueueLimit,
		LogLevel:              logging.PolicyLevel(*d.LogLevel).String(),
		WifiOnlySending:       *d.WifiOnlySending,
		Enabled:               *d.Enabled,
		LastFetch:             now,
		ETag:                  d.ETag,
	}
	if d.DispatchAfter != nil {
		p.DispatchAfter = *d.DispatchAfter
	}
	if d.LastFetch != nil {
		p.LastFetch = *d.LastFetch
	}
	return p, nil
}

func atoi(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func atof(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}
