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

// Package projector rebuilds the PrimaryProjection from the semilattice
// view on every metadata change and fans the result out to every worker's
// region-map store.
package projector

import (
	"context"
	"log/slog"

	"go.corp.nvidia.com/nsrepo/internal/model"
	"go.corp.nvidia.com/nsrepo/internal/regionstore"
	"go.corp.nvidia.com/nsrepo/internal/worker"
)

// Target pairs a worker with the region store it owns.
type Target struct {
	Worker *worker.Worker
	Store  *regionstore.Store
}

// Projector rebuilds PrimaryProjection from a SemilatticeView and applies
// it to every Target whenever the view reports a change.
type Projector struct {
	view    model.SemilatticeView
	targets []Target
	instr   model.Instrumentation
	logger  *slog.Logger
}

// New returns a Projector that will fan updates out to targets. instr may
// be nil to disable metrics.
func New(view model.SemilatticeView, targets []Target, instr model.Instrumentation, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{view: view, targets: targets, instr: instr, logger: logger}
}

// Run subscribes to view and applies a fresh projection to every target
// once immediately and again on every subsequent change notification. It
// returns when ctx is done or the subscription's channel closes; both are
// normal, non-error shutdown paths.
func (p *Projector) Run(ctx context.Context) error {
	changes, unsubscribe := p.view.Subscribe(ctx)
	defer unsubscribe()

	p.applyOnce()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			p.applyOnce()
		}
	}
}

func (p *Projector) applyOnce() {
	snap := p.view.Snapshot()
	updates, deleted := Build(snap)

	if p.instr != nil {
		p.instr.ProjectionRebuilt()
	}
	p.logger.Debug("projector rebuilt primary projection",
		slog.Int("tables_updated", len(updates)),
		slog.Int("tables_deleted", len(deleted)),
	)

	for _, t := range p.targets {
		store := t.Store
		t.Worker.Go(func() {
			store.Apply(updates, deleted)
		})
	}
}

// Build derives the non-conflict portion of a PrimaryProjection from a
// semilattice snapshot, plus the set of tables that have been deleted.
// Tables whose blueprint is in conflict are omitted from updates entirely
// so that regionstore.Store.Apply leaves their prior mapping untouched:
// the reactor makes no role changes while a blueprint is in conflict, so
// the stale mapping is better than none.
func Build(snap map[model.TableID]model.TableBlueprint) (updates model.PrimaryProjection, deleted []model.TableID) {
	updates = make(model.PrimaryProjection, len(snap))
	for id, bp := range snap {
		if bp.Deleted {
			deleted = append(deleted, id)
			continue
		}
		if bp.InConflict {
			continue
		}
		rm := make(model.RegionMap[model.MachineID])
		for machine, regionRoles := range bp.MachineRole {
			for kr, role := range regionRoles {
				if role == model.RolePrimary {
					rm[kr] = machine
				}
			}
		}
		updates[id] = rm
	}
	return updates, deleted
}
