// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

/*
Package publishsettings retrieves the remotely hosted pipeline policy and
merges it into the local configuration.

The policy document is published as part of an HTML page. The JSON object is
assigned to a script variable and is located by text markers:

	<script>var mps = {"5":{"event_batch_size":"1", ...}}</script>

Older documents encode every value as a string below the "5" key. Cached
documents and newer publishers use native JSON types at the top level. Parse
accepts both.

# Refresh

A Retriever fetches once on first use, then at most once per
minutes_between_refresh. Requests carry If-Modified-Since and, when the last
response had one, If-None-Match. Every attempt advances the cached lastFetch,
so a failing endpoint is retried on the normal schedule and never in a loop.

# Merge

Merge applies the remote policy to local settings. A field the operator set
explicitly (file, environment or setter) keeps its local value. Merge is a
pure function of its inputs.
*/
package publishsettings
