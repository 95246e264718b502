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

package projector

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.corp.nvidia.com/nsrepo/internal/model"
	"go.corp.nvidia.com/nsrepo/internal/regionstore"
	"go.corp.nvidia.com/nsrepo/internal/worker"
)

func TestBuild_SkipsInConflictTables(t *testing.T) {
	t.Parallel()
	snap := map[model.TableID]model.TableBlueprint{
		"conflicted": {
			InConflict: true,
			MachineRole: map[model.MachineID]model.RegionMap[model.Role]{
				"m1": {model.KeyRange{Start: "a", End: "z"}: model.RolePrimary},
			},
		},
	}
	updates, deleted := Build(snap)
	if _, ok := updates["conflicted"]; ok {
		t.Fatal("in-conflict table must not appear in updates")
	}
	if len(deleted) != 0 {
		t.Fatalf("expected no deletions, got %v", deleted)
	}
}

func TestBuild_CollectsDeletedTables(t *testing.T) {
	t.Parallel()
	snap := map[model.TableID]model.TableBlueprint{
		"gone": {Deleted: true},
	}
	updates, deleted := Build(snap)
	if len(updates) != 0 {
		t.Fatalf("expected no updates, got %v", updates)
	}
	if len(deleted) != 1 || deleted[0] != "gone" {
		t.Fatalf("expected [gone], got %v", deleted)
	}
}

func TestBuild_ExtractsOnlyPrimaryRoles(t *testing.T) {
	t.Parallel()
	snap := map[model.TableID]model.TableBlueprint{
		"t1": {
			MachineRole: map[model.MachineID]model.RegionMap[model.Role]{
				"primary-machine":   {model.KeyRange{Start: "a", End: "m"}: model.RolePrimary},
				"secondary-machine": {model.KeyRange{Start: "m", End: "z"}: model.RoleSecondary},
			},
		},
	}
	updates, _ := Build(snap)
	rm := updates["t1"]
	if len(rm) != 1 {
		t.Fatalf("expected exactly one primary region, got %+v", rm)
	}
	if rm[model.KeyRange{Start: "a", End: "m"}] != "primary-machine" {
		t.Fatalf("unexpected primary region map: %+v", rm)
	}
}

// fakeView is a minimal model.SemilatticeView for tests.
type fakeView struct {
	mu   sync.Mutex
	snap map[model.TableID]model.TableBlueprint
	subs []chan struct{}
}

func newFakeView() *fakeView {
	return &fakeView{snap: map[model.TableID]model.TableBlueprint{}}
}

func (v *fakeView) Snapshot() map[model.TableID]model.TableBlueprint {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[model.TableID]model.TableBlueprint, len(v.snap))
	for k, val := range v.snap {
		out[k] = val
	}
	return out
}

func (v *fakeView) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	v.mu.Lock()
	v.subs = append(v.subs, ch)
	v.mu.Unlock()
	return ch, func() {}
}

func (v *fakeView) update(snap map[model.TableID]model.TableBlueprint) {
	v.mu.Lock()
	v.snap = snap
	subs := v.subs
	v.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func TestProjector_RunAppliesInitialAndSubsequentSnapshots(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := worker.NewPool(ctx, 1)
	defer pool.Stop()

	store := regionstore.New()
	view := newFakeView()
	view.update(map[model.TableID]model.TableBlueprint{
		"t1": {MachineRole: map[model.MachineID]model.RegionMap[model.Role]{
			"m1": {model.KeyRange{Start: "a", End: "z"}: model.RolePrimary},
		}},
	})

	p := New(view, []Target{{Worker: pool.Worker(0), Store: store}}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitForTable(t, store, "t1")

	view.update(map[model.TableID]model.TableBlueprint{
		"t2": {MachineRole: map[model.MachineID]model.RegionMap[model.Role]{
			"m2": {model.KeyRange{Start: "a", End: "z"}: model.RolePrimary},
		}},
	})

	waitForTable(t, store, "t2")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func waitForTable(t *testing.T, store *regionstore.Store, table model.TableID) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if store.Get(table) != nil {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("table %q never appeared in store", table)
}
