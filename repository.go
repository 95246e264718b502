/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION & AFFILIATES. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package nsrepo

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"

	"go.corp.nvidia.com/nsrepo/internal/cacheentry"
	"go.corp.nvidia.com/nsrepo/internal/drain"
	"go.corp.nvidia.com/nsrepo/internal/projector"
	"go.corp.nvidia.com/nsrepo/internal/reactorwatch"
	"go.corp.nvidia.com/nsrepo/internal/regionstore"
	"go.corp.nvidia.com/nsrepo/internal/worker"
)

// Config configures a Repository.
type Config struct {
	// Workers is the number of worker shards to run. Each table is pinned
	// to exactly one worker for its entire lifetime.
	Workers int

	SemilatticeView SemilatticeView
	ReactorCards    DirectoryWatchable
	Builder         NamespaceInterfaceBuilder

	// Messaging is threaded through to every NamespaceInterfaceBuilder
	// call unmodified; this repository never inspects it.
	Messaging MessagingHandle

	Logger          *slog.Logger
	Instrumentation Instrumentation // optional
	Audit           AuditSink       // optional
}

// Repository is a namespace interface repository: Get returns a live,
// reference-counted NamespaceInterface for a table, constructing one on
// first use and tearing it down after NamespaceInterfaceExpiration of
// disuse.
type Repository struct {
	cfg Config

	pool         *worker.Pool
	stores       []*regionstore.Store
	entries      []map[TableID]*cacheentry.Entry
	reactorCache *reactorwatch.Cache

	drainGroup *drain.Group
	projector  *projector.Projector

	logger *slog.Logger
}

// New constructs a Repository and starts its worker pool and directory
// projector. The returned Repository must be closed with Close.
func New(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SemilatticeView == nil || cfg.ReactorCards == nil || cfg.Builder == nil {
		return nil, fmt.Errorf("nsrepo: Config requires SemilatticeView, ReactorCards, and Builder")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Repository{
		cfg: cfg,
		// The pool deliberately ignores ctx: lifecycle tasks need live
		// workers to erase their entries during drain, so the workers only
		// stop in Close, after the drain has finished.
		pool:         worker.NewPool(context.Background(), cfg.Workers),
		stores:       make([]*regionstore.Store, cfg.Workers),
		entries:      make([]map[TableID]*cacheentry.Entry, cfg.Workers),
		reactorCache: reactorwatch.NewCache(),
		drainGroup:   drain.New(ctx),
		logger:       logger,
	}

	targets := make([]projector.Target, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		r.stores[i] = regionstore.New()
		r.entries[i] = make(map[TableID]*cacheentry.Entry)
		targets[i] = projector.Target{Worker: r.pool.Worker(i), Store: r.stores[i]}
	}

	r.projector = projector.New(cfg.SemilatticeView, targets, cfg.Instrumentation, logger)
	r.drainGroup.Go(func(ctx context.Context) error {
		return r.projector.Run(ctx)
	})

	return r, nil
}

// Close drains every live entry lifecycle task and stops the worker pool.
// It blocks until every table has been torn down.
func (r *Repository) Close() error {
	err := r.drainGroup.Drain()
	r.pool.Stop()
	return err
}

// workerFor returns the worker a table is permanently pinned to.
func (r *Repository) workerFor(table TableID) *worker.Worker {
	h := fnv.New32a()
	_, _ = h.Write([]byte(table))
	return r.pool.Worker(int(h.Sum32()) % r.pool.Len())
}

// Get returns an AccessHandle wrapping the NamespaceInterface for table,
// constructing one if this is the table's first active reference. The
// returned handle must be released exactly once via AccessHandle.Release.
//
// Get blocks until the interface is ready to publish or ctx is done,
// whichever comes first; it also returns promptly if the repository is
// already draining.
func (r *Repository) Get(ctx context.Context, table TableID) (*AccessHandle, error) {
	if r.drainGroup.Drained() {
		return nil, errDrained(table)
	}

	w := r.workerFor(table)

	var entry *cacheentry.Entry
	var isNew bool
	w.GoSync(func() {
		entries := r.entries[w.ID()]
		if e, ok := entries[table]; ok {
			e.AddRef()
			entry = e
			return
		}
		e := cacheentry.New(table)
		entries[table] = e
		entry = e
		isNew = true
	})

	if isNew {
		r.launchEntry(w, table, entry)
	}

	select {
	case <-entry.Slot.Done():
		return &AccessHandle{worker: w, entry: entry, iface: entry.Slot.Value()}, nil
	case <-entry.ConstructErr.Done():
		cause := entry.ConstructErr.Value()
		w.Go(func() { entry.Release() })
		if r.drainGroup.Drained() {
			return nil, errDrained(table)
		}
		return nil, errConstructionFailed(table, cause)
	case <-ctx.Done():
		w.Go(func() { entry.Release() })
		return nil, errCancelled(table, ctx.Err())
	}
}

// launchEntry dispatches entry's lifecycle task onto the repository's
// drain group, bound to w's owning worker.
func (r *Repository) launchEntry(w *worker.Worker, table TableID, entry *cacheentry.Entry) {
	r.drainGroup.Go(func(ctx context.Context) error {
		return cacheentry.Run(ctx, entry, cacheentry.Deps{
			Worker:       w,
			Home:         r.pool.Worker(0),
			Table:        table,
			Messaging:    r.cfg.Messaging,
			Regions:      func() RegionMap[MachineID] { return r.stores[w.ID()].Get(table) },
			ReactorCards: r.cfg.ReactorCards,
			ReactorCache: r.reactorCache,
			Builder:      r.cfg.Builder,
			OnErase: func() {
				delete(r.entries[w.ID()], table)
			},
			Logger:          r.logger,
			Instrumentation: r.cfg.Instrumentation,
			Audit:           r.cfg.Audit,
		})
	})
}
