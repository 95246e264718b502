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

// Package regionstore implements the per-worker region-map store: the
// current TableID -> RegionMap[MachineID] projection for one worker. Reads
// are wait-free (a single atomic pointer load, no channel round-trip);
// writes arrive only from the directory projector via a closure run on the
// owning worker.
package regionstore

import (
	"sync/atomic"

	"go.corp.nvidia.com/nsrepo/internal/model"
)

// Store is a read-optimized, single-writer map of table projections.
type Store struct {
	current atomic.Pointer[model.PrimaryProjection]
}

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	empty := model.PrimaryProjection{}
	s.current.Store(&empty)
	return s
}

// Get returns the current region map for table, or nil if the table has no
// known projection. Wait-free: callers never block behind a writer.
func (s *Store) Get(table model.TableID) model.RegionMap[model.MachineID] {
	proj := *s.current.Load()
	return proj[table]
}

// Snapshot returns the full current projection. The returned map must not
// be mutated.
func (s *Store) Snapshot() model.PrimaryProjection {
	return *s.current.Load()
}

// Apply replaces the store's contents with the result of layering updates
// over the prior snapshot: deleted tables are removed, then every entry in
// updates overwrites (or inserts) the corresponding table. Tables absent
// from both deleted and updates -- i.e. tables the projector is currently
// treating as in-conflict -- are carried over unchanged, so an in-conflict
// table keeps its last good mapping instead of losing it. Must be called
// only from a closure running on the store's owning worker; Store itself
// does not enforce that, the caller (internal/projector) does by
// construction.
func (s *Store) Apply(updates model.PrimaryProjection, deleted []model.TableID) {
	old := *s.current.Load()
	next := make(model.PrimaryProjection, len(old)+len(updates))
	for id, rm := range old {
		next[id] = rm
	}
	for _, id := range deleted {
		delete(next, id)
	}
	for id, rm := range updates {
		next[id] = rm
	}
	s.current.Store(&next)
}
