// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package publishsettings

import (
	"errors"
	"testing"
	"time"
)

const legacyDocument = `{"5":{"_is_enabled":"true","battery_saver":"false","dispatch_expiration":"7",` +
	`"enable_collect":"true","enable_tag_management":"false","event_batch_size":"5",` +
	`"minutes_between_refresh":"15.0","offline_dispatch_limit":"30","override_log":"dev",` +
	`"wifi_only_sending":"false"}}`

const nativeDocumentJSON = `{"_is_enabled":false,"battery_saver":true,"dispatch_expiration":3,` +
	`"enable_collect":false,"enable_tag_management":true,"event_batch_size":10,` +
	`"minutes_between_refresh":1.5,"offline_dispatch_limit":100,"override_log":"qa",` +
	`"wifi_only_sending":true}`

func page(doc string) []byte {
	return []byte("<!DOCTYPE html>\n<html><head>\n<script type=\"text/javascript\">\nvar mps = " +
		doc + "\n</script>\n</head><body></body></html>")
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseLegacyDocument(t *testing.T) {
	p, err := Parse(page(legacyDocument), fixedNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !p.Enabled || p.BatterySaver || !p.CollectEnabled || p.TagManagementEnabled || p.WifiOnlySending {
		t.Errorf("unexpected flags: %+v", p)
	}
	if p.BatchSize != 5 || p.DispatchAfter != 5 {
		t.Errorf("BatchSize/DispatchAfter = %d/%d, want 5/5", p.BatchSize, p.DispatchAfter)
	}
	if p.QueueLimit != 30 || p.DispatchExpiration != 7 {
		t.Errorf("QueueLimit/DispatchExpiration = %d/%d", p.QueueLimit, p.DispatchExpiration)
	}
	if p.MinutesBetweenRefresh != 15 {
		t.Errorf("MinutesBetweenRefresh = %v, want 15", p.MinutesBetweenRefresh)
	}
	if p.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", p.LogLevel)
	}
	if !p.LastFetch.Equal(fixedNow) {
		t.Errorf("LastFetch = %v, want %v", p.LastFetch, fixedNow)
	}
}

func TestParseLegacyFallsBackOnBadNumbers(t *testing.T) {
	doc := `{"5":{"_is_enabled":"true","battery_saver":"false","dispatch_expiration":"x",` +
		`"enable_collect":"true","enable_tag_management":"true","event_batch_size":"",` +
		`"minutes_between_refresh":"soon","offline_dispatch_limit":"-","override_log":"other",` +
		`"wifi_only_sending":"false"}}`
	p, err := Parse(page(doc), fixedNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.BatchSize != DefaultBatchSize || p.QueueLimit != DefaultQueueLimit ||
		p.DispatchExpiration != DefaultDispatchExpiration || p.MinutesBetweenRefresh != DefaultMinutesBetweenRefresh {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.LogLevel != "disabled" {
		t.Errorf("LogLevel = %q, want disabled", p.LogLevel)
	}
}

func TestParseNativeDocument(t *testing.T) {
	p, err := Parse(page(nativeDocumentJSON), fixedNow)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Enabled || !p.BatterySaver || p.CollectEnabled || !p.TagManagementEnabled || !p.WifiOnlySending {
		t.Errorf("unexpected flags: %+v", p)
	}
	if p.BatchSize != 10 || p.DispatchAfter != 10 || p.QueueLimit != 100 || p.DispatchExpiration != 3 {
		t.Errorf("unexpected numbers: %+v", p)
	}
	if p.RefreshInterval() != 90*time.Second {
		t.Errorf("RefreshInterval = %v, want 90s", p.RefreshInterval())
	}
	if p.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", p.LogLevel)
	}
}

func TestDecodeNativeKeepsLastFetch(t *testing.T) {
	stamp := fixedNow.Add(-time.Hour)
	doc := nativeDocumentJSON[:len(nativeDocumentJSON)-1] + `,"lastFetch":"` + stamp.Format(time.RFC3339) + `"}`
	p, err := Decode([]byte(doc), fixedNow)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !p.LastFetch.Equal(stamp) {
		t.Errorf("LastFetch = %v, want %v", p.LastFetch, stamp)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		page []byte
		want error
	}{
		{"no start marker", []byte("<script>var other = {}</script>"), ErrMarkersNotFound},
		{"end before start", []byte("</script><script>var mps = {}"), ErrMarkersNotFound},
		{"missing fields", page(`{"5":{"event_batch_size":"1"}}`), ErrInvalidDocument},
		{"not json", page(`not json`), ErrInvalidDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.page, fixedNow); !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExtractTrimsStatementTerminator(t *testing.T) {
	got, err := Extract([]byte("<script>var mps = {\"a\":1};\n</script>"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Extract = %q", got)
	}
}

func TestPolicyDue(t *testing.T) {
	p := Policy{MinutesBetweenRefresh: 15, LastFetch: fixedNow}
	if p.Due(fixedNow.Add(10 * time.Minute)) {
		t.Error("Due after 10 minutes")
	}
	if !p.Due(fixedNow.Add(16 * time.Minute)) {
		t.Error("not Due after 16 minutes")
	}
}

func TestSourceResolve(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		want string
	}{
		{"override", Source{URL: "https://example.com/p.html", Account: "a"}, "https://example.com/p.html"},
		{"profile", Source{Account: "acme", Profile: "main", Environment: "prod"},
			"https://tags.tiqcdn.com/utag/acme/main/prod/mobile.html"},
		{"policy profile", Source{Account: "acme", Profile: "main", PolicyProfile: "settings", Environment: "dev"},
			"https://tags.tiqcdn.com/utag/acme/settings/dev/mobile.html"},
		{"custom base", Source{BaseURL: "http://localhost:8080", Account: "a", Profile: "p", Environment: "qa"},
			"http://localhost:8080/a/p/qa/mobile.html"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.src.Resolve(); got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}
