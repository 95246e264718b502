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

// Package model holds the repository's data model and external contracts.
// The root nsrepo package re-exports everything here via type aliases; the
// internal packages (regionstore, projector, cacheentry, reactorwatch)
// import this package instead of the root so the dependency graph stays
// acyclic: root -> internal/* -> model.
package model

import (
	"context"
	"time"
)

// NamespaceInterfaceExpiration is the idle-retention window for a cached
// namespace interface. Fixed at 60s.
const NamespaceInterfaceExpiration = 60 * time.Second

// TableID is an opaque globally-unique identifier of a table.
type TableID string

// MachineID is an opaque identifier of a cluster node.
type MachineID string

// PeerID is an identifier of a connected process.
type PeerID string

// KeyRange is a half-open interval over the key space. KeyRanges within one
// table are disjoint and cover the keyspace.
type KeyRange struct {
	Start string
	End   string // exclusive; empty means unbounded
}

// Contains reports whether key falls in [Start, End).
func (r KeyRange) Contains(key string) bool {
	if key < r.Start {
		return false
	}
	if r.End == "" {
		return true
	}
	return key < r.End
}

// RegionMap is a mapping KeyRange -> T with non-overlapping keys.
type RegionMap[T any] map[KeyRange]T

// Clone returns a shallow copy of the region map.
func (m RegionMap[T]) Clone() RegionMap[T] {
	out := make(RegionMap[T], len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PrimaryProjection maps a table to the region map of its current primary
// machine assignments.
type PrimaryProjection map[TableID]RegionMap[MachineID]

// Role is a replica's responsibility for a key range within one table's
// blueprint.
type Role int

const (
	// RoleSecondary is any non-primary replica role.
	RoleSecondary Role = iota
	// RolePrimary is the replica responsible for serializing writes over a
	// key range.
	RolePrimary
)

// ReactorCard is an opaque per-peer, per-table advertisement published by
// the directory.
type ReactorCard struct {
	PeerID  PeerID
	TableID TableID
	// Internal carries whatever payload the directory publishes; this
	// repository treats it as opaque.
	Internal []byte
}

// TableBlueprint is the authoritative mapping of machines to roles per key
// range for one table, as published by the semilattice view.
type TableBlueprint struct {
	Deleted     bool
	InConflict  bool
	MachineRole map[MachineID]RegionMap[Role]
}

// SemilatticeView publishes a snapshot of every table's metadata plus a
// change-notification stream.
type SemilatticeView interface {
	// Snapshot returns the current table map. The returned map must not be
	// mutated by the caller.
	Snapshot() map[TableID]TableBlueprint

	// Subscribe returns a channel that receives a value each time the
	// snapshot changes, and an unsubscribe function. The stream ends when
	// ctx is done; implementations may close the channel then, but are not
	// required to -- consumers must watch ctx as well.
	Subscribe(ctx context.Context) (changes <-chan struct{}, unsubscribe func())
}

// DirectoryWatchable publishes PeerID -> per-table ReactorCard for every
// connected peer, and supports narrowing that to a single table's view.
type DirectoryWatchable interface {
	// Snapshot returns the current PeerID -> ReactorCard mapping for the
	// given table.
	Snapshot(table TableID) map[PeerID]ReactorCard

	// Subscribe returns a channel that receives a value whenever the
	// directory changes for the given table, and an unsubscribe function.
	Subscribe(ctx context.Context, table TableID) (changes <-chan struct{}, unsubscribe func())
}

// MessagingHandle is the opaque transport a NamespaceInterface uses to reach
// replicas.
type MessagingHandle interface {
	// Name identifies the handle for logging/metrics purposes only.
	Name() string
}

// NamespaceInterface is the routing object owned for one table. Its
// construction and readiness signal are the only parts this repository
// governs; its read and write API is external.
type NamespaceInterface interface {
	// Ready returns a channel that is closed once the interface has
	// completed its initial directory subscription and is safe to publish
	// to callers.
	Ready() <-chan struct{}

	// Close tears the interface down. Called exactly once, from the
	// entry's lifecycle task, after the reference count has reached zero.
	Close() error
}

// NamespaceInterfaceBuilder constructs a NamespaceInterface for one table on
// one worker.
type NamespaceInterfaceBuilder func(
	ctx context.Context,
	messaging MessagingHandle,
	regions func() RegionMap[MachineID],
	reactorCards DirectoryWatchable,
	table TableID,
) (NamespaceInterface, error)

// LifecycleEvent names a transition a cache entry goes through, used by an
// optional AuditSink.
type LifecycleEvent string

const (
	LifecycleCreated     LifecycleEvent = "created"
	LifecyclePublished   LifecycleEvent = "published"
	LifecycleIdleExpired LifecycleEvent = "idle_expired"
	LifecycleDrained     LifecycleEvent = "drained"
)

// AuditSink optionally records entry lifecycle transitions. A nil sink
// disables auditing entirely.
type AuditSink interface {
	Record(ctx context.Context, worker int, table TableID, event LifecycleEvent, at time.Time) error
}

// Instrumentation receives repository-internal events for metrics
// recording. A nil Instrumentation disables metrics entirely.
type Instrumentation interface {
	EntryCreated(table TableID)
	EntryErased(table TableID, reason string)
	ActiveEntries(delta int)
	ProjectionRebuilt()
	GetLatency(d time.Duration)
}
