// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package publishsettings

import "strings"

// DefaultBaseURL is the host serving published pages.
const DefaultBaseURL = "https://tags.tiqcdn.com/utag/"

// PageName is the page carrying the policy document.
const PageName = "mobile.html"

// Source identifies the published policy page.
type Source struct {
	// URL overrides every other field when set.
	URL string

	BaseURL     string
	Account     string
	Profile     string
	Environment string

	// PolicyProfile publishes the policy from a different profile.
	PolicyProfile string
}

// Resolve returns the page URL.
func (s Source) Resolve() string {
	if s.URL != "" {
		return s.URL
	}
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	profile := s.Profile
	if s.PolicyProfile != "" {
		profile = s.PolicyProfile
	}
	return base + s.Account + "/" + profile + "/" + s.Environment + "/" + PageName
}
