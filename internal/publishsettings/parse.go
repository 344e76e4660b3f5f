// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package publishsettings

import (
	"bytes"
	"errors"
	"time"
)

// Markers delimiting the policy object inside the published page.
const (
	StartMarker = "var mps = "
	EndMarker   = "</script>"
)

// ErrMarkersNotFound is returned when the page does not embed a policy.
var ErrMarkersNotFound = errors.New("publishsettings: policy markers not found")

// Extract returns the text between StartMarker and the first EndMarker that
// follows it.
func Extract(page []byte) ([]byte, error) {
	start := bytes.Index(page, []byte(StartMarker))
	if start < 0 {
		return nil, ErrMarkersNotFound
	}
	rest := page[start+len(StartMarker):]
	end := bytes.Index(rest, []byte(EndMarker))
	if end < 0 {
		return nil, ErrMarkersNotFound
	}
	doc := bytes.TrimSpace(rest[:end])
	return bytes.TrimSuffix(doc, []byte(";")), nil
}

// Parse extracts and decodes the policy embedded in page.
func Parse(page []byte, now time.Time) (*Policy, error) {
	doc, err := Extract(page)
	if err != nil {
		return nil, err
	}
	return Decode(doc, now)
}
