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

// Package nsrepo brokers access to live namespace interfaces for a set of
// distributed tables. A namespace interface is expensive to build -- it
// subscribes to cluster directory state and tracks the current primary
// replica for every key range of one table -- so the repository caches one
// per (worker, table) pair, builds it exactly once, shares it across
// concurrent callers, and tears it down after it has been idle for
// NamespaceInterfaceExpiration.
//
// The data model and external contracts live in internal/model so the
// internal packages can share them without importing this package; the
// aliases below are the public names.
package nsrepo

import "go.corp.nvidia.com/nsrepo/internal/model"

// NamespaceInterfaceExpiration is the idle-retention window for a cached
// namespace interface: once its reference count falls to zero and stays
// there for this long, the entry is erased. Fixed at 60s.
const NamespaceInterfaceExpiration = model.NamespaceInterfaceExpiration

// TableID is an opaque globally-unique identifier of a table.
type TableID = model.TableID

// MachineID is an opaque identifier of a cluster node.
type MachineID = model.MachineID

// PeerID is an identifier of a connected process.
type PeerID = model.PeerID

// KeyRange is a half-open interval over the key space. KeyRanges within one
// table are disjoint and cover the keyspace.
type KeyRange = model.KeyRange

// RegionMap is a mapping KeyRange -> T with non-overlapping keys.
type RegionMap[T any] = model.RegionMap[T]

// PrimaryProjection maps a table to the region map of its current primary
// machine assignments. It is rebuilt by the directory projector whenever
// cluster metadata changes and replicated to every worker's region-map
// store.
type PrimaryProjection = model.PrimaryProjection

// Role is a replica's responsibility for a key range within one table's
// blueprint.
type Role = model.Role

const (
	// RoleSecondary is any non-primary replica role.
	RoleSecondary = model.RoleSecondary
	// RolePrimary is the replica responsible for serializing writes over a
	// key range.
	RolePrimary = model.RolePrimary
)

// ReactorCard is an opaque per-peer, per-table advertisement published by
// the directory. It is used by the namespace interface, not inspected here.
type ReactorCard = model.ReactorCard
