// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

/*
Package supervisor runs Beacon's long-lived services under suture v4.

The tree isolates failures by layer:

	Root ("beacon")
	├── storage-layer
	│   └── storage-compactor (BadgerDB value log GC)
	├── pipelines
	│   ├── pipeline-<instance>
	│   │   ├── chain executor (rwqueue.Serial)
	│   │   ├── connectivity-monitor
	│   │   └── policy-refresher
	│   └── ...
	└── api-layer
	    └── http-server

Each pipeline instance gets its own supervisor so instances can be added and
removed while the tree runs, and a crashing refresher of one instance never
restarts another instance's executor.

Supervisor events are logged through sutureslog with the zerolog-backed slog
handler from internal/logging.
*/
package supervisor
