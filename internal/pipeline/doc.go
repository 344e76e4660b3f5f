// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

/*
Package pipeline composes a complete event pipeline instance from the chain,
its built-in modules and the host's dispatchers.

An Instance owns, for one account/profile/environment:

  - the reader-writer queue shared by all of its storage
  - the serial executor that owns chain state
  - the durable dispatch queue
  - the data layer, consent, connectivity and batching modules
  - the remote policy retriever and its refresher

Built-in modules are visited in this order: data layer, consent, connectivity,
batching, host modules, then dispatchers.

A Registry holds named instances and runs their services on a supervisor tree.
The tree must be serving before instances are added, because enabling an
instance waits for its executor:

	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.ServeBackground(ctx)

	reg := pipeline.NewRegistry(tree, 10*time.Second)
	inst, err := pipeline.New(ctx, pipeline.Options{Config: cfg, Backend: backend, Dispatchers: ds})
	if err == nil {
	    err = reg.Add(ctx, inst)
	}
*/
package pipeline
