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

package regionstore

import (
	"testing"

	"go.corp.nvidia.com/nsrepo/internal/model"
)

func TestStore_GetOnEmptyStore(t *testing.T) {
	t.Parallel()
	s := New()
	if got := s.Get("t1"); got != nil {
		t.Fatalf("expected nil region map, got %v", got)
	}
}

func TestStore_ApplyUpdatesAndDeletes(t *testing.T) {
	t.Parallel()
	s := New()

	rmA := model.RegionMap[model.MachineID]{
		model.KeyRange{Start: "a", End: "m"}: "machine-1",
	}
	s.Apply(model.PrimaryProjection{"tableA": rmA}, nil)

	got := s.Get("tableA")
	if len(got) != 1 || got[model.KeyRange{Start: "a", End: "m"}] != "machine-1" {
		t.Fatalf("unexpected region map after first apply: %+v", got)
	}

	s.Apply(nil, []model.TableID{"tableA"})
	if got := s.Get("tableA"); got != nil {
		t.Fatalf("expected tableA to be deleted, got %v", got)
	}
}

func TestStore_ApplyRetainsTablesAbsentFromBoth(t *testing.T) {
	t.Parallel()
	s := New()

	rmA := model.RegionMap[model.MachineID]{
		model.KeyRange{Start: "a", End: "z"}: "machine-1",
	}
	s.Apply(model.PrimaryProjection{"inConflict": rmA}, nil)

	// A second Apply that mentions neither update nor delete for
	// "inConflict" must leave its prior mapping untouched -- this is how
	// the projector represents "this table is currently in conflict."
	s.Apply(model.PrimaryProjection{"other": {}}, nil)

	got := s.Get("inConflict")
	if len(got) != 1 || got[model.KeyRange{Start: "a", End: "z"}] != "machine-1" {
		t.Fatalf("expected in-conflict table mapping to be retained, got %+v", got)
	}
}

func TestStore_SnapshotUnaffectedByLaterApply(t *testing.T) {
	t.Parallel()
	s := New()
	s.Apply(model.PrimaryProjection{"t": {}}, nil)

	snap1 := s.Snapshot()
	s.Apply(model.PrimaryProjection{"t2": {}}, nil)
	snap2 := s.Snapshot()

	if _, ok := snap1["t2"]; ok {
		t.Fatal("earlier snapshot must not observe later writes")
	}
	if _, ok := snap2["t2"]; !ok {
		t.Fatal("later snapshot must observe the write")
	}
}
